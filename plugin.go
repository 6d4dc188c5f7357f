package mapreduce

import (
	"plugin"
	"reflect"

	"github.com/pkg/errors"
)

// MapFunc is the user map entry point: it receives the task's input
// bytes and an emit callback valid only for the duration of the call,
// per spec.md §6.
type MapFunc func(input []byte, emit func(key, value []byte))

// ReduceFunc is the user reduce entry point: it receives a key and its
// contiguous group of values, and an emit callback.
type ReduceFunc func(key string, values []string, emit func(key, value string))

var (
	mapFuncType    = reflect.TypeOf(MapFunc(nil))
	reduceFuncType = reflect.TypeOf(ReduceFunc(nil))
)

// LoadPlugin resolves the user's Map and Reduce symbols from a Go
// plugin built with `go build -buildmode=plugin`. This is the idiomatic
// Go rendition of spec.md §6's C-linkage plug-in surface: spec.md §9
// leaves the loading mechanism to the implementer, and Go's own
// dynamic-symbol-lookup facility is the closest native analogue to
// dlopen/dlsym.
//
// A plugin declares its symbols as the plain unnamed func types spec.md
// §6 documents (`var Map func(input []byte, emit func(key, value []byte))`),
// not as mapreduce.MapFunc/ReduceFunc, so plugin.Lookup hands back a
// *func(...) whose dynamic type never matches *MapFunc/*ReduceFunc by a
// direct type assertion — named and unnamed func types are distinct
// types even with identical underlying signatures. reflect is used to
// convert the looked-up value to the named type instead.
func LoadPlugin(path string) (MapFunc, ReduceFunc, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open plugin %s", path)
	}

	mapSym, err := p.Lookup("Map")
	if err != nil {
		return nil, nil, errors.Wrapf(err, "plugin %s missing Map symbol", path)
	}
	mapF, err := asFunc(mapSym, mapFuncType)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "plugin %s: Map", path)
	}

	reduceSym, err := p.Lookup("Reduce")
	if err != nil {
		return nil, nil, errors.Wrapf(err, "plugin %s missing Reduce symbol", path)
	}
	reduceF, err := asFunc(reduceSym, reduceFuncType)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "plugin %s: Reduce", path)
	}

	return mapF.Interface().(MapFunc), reduceF.Interface().(ReduceFunc), nil
}

// asFunc recovers the func value behind a symbol looked up from a
// plugin (always a pointer to the exported var) and converts it to
// funcType, accepting both the named type itself and any unnamed func
// type with an identical underlying signature.
func asFunc(sym plugin.Symbol, funcType reflect.Type) (reflect.Value, error) {
	v := reflect.ValueOf(sym)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Func {
		return reflect.Value{}, errors.Errorf("has unexpected type %T", sym)
	}
	fn := v.Elem()
	if fn.IsNil() {
		return reflect.Value{}, errors.New("is nil")
	}
	if !fn.Type().ConvertibleTo(funcType) {
		return reflect.Value{}, errors.Errorf("has unexpected type %s", fn.Type())
	}
	return fn.Convert(funcType), nil
}
