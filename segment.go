package mapreduce

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Segmenter scans an input directory and materializes size-bounded byte
// segments on shared storage, one per eventual MapTask. It is adapted
// from the teacher's result-merge writer (master_splitmerge.go's staged
// prepare/collect/write object) but runs the opposite direction: writing
// many small immutable files instead of folding many files into one.
type Segmenter struct {
	InputDir       string
	SegmentsDir    string
	MaxSegmentSize int
	Logger         *zap.Logger
}

// Run executes the algorithm from spec.md §4.1 and returns the ordered
// list of segment file paths it wrote.
func (s *Segmenter) Run() ([]string, error) {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(s.SegmentsDir, 0777); err != nil {
		return nil, errors.Wrapf(err, "create segments directory %s", s.SegmentsDir)
	}

	entries, err := os.ReadDir(s.InputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "read input directory %s", s.InputDir)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var segments []string
	var buffer []byte

	flush := func() error {
		if len(buffer) == 0 {
			return nil
		}
		path, err := s.writeSegment(len(segments), buffer)
		if err != nil {
			return err
		}
		segments = append(segments, path)
		buffer = nil
		return nil
	}

	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			return nil, errors.Wrapf(err, "stat %s", entry.Name())
		}
		if !info.Mode().IsRegular() {
			logger.Warn("skipping non-regular input entry", zap.String("name", entry.Name()))
			continue
		}

		path := filepath.Join(s.InputDir, entry.Name())
		if err := s.scanFile(path, &buffer, &segments, flush); err != nil {
			return nil, err
		}
	}

	if err := flush(); err != nil {
		return nil, err
	}

	logger.Info("segmented input", zap.Int("segments", len(segments)), zap.String("input_dir", s.InputDir))
	return segments, nil
}

// scanFile streams one input file's lines into buffer, emitting segments
// through the shared flush closure (buffered content) or writeSegment
// directly (oversize-line chunks) per the rules of spec.md §4.1:
//
//  1. An oversize line flushes the current buffer, then is cut into its
//     own maxSegmentSize-byte segments and is NOT appended to buffer.
//  2. A line that would overflow the buffer flushes the buffer first,
//     and IS then appended (this is the one case where append follows
//     an emit).
func (s *Segmenter) scanFile(path string, buffer *[]byte, segments *[]string, flush func() error) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open input file %s", path)
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	for {
		line, readErr := readLine(reader)
		if line == nil && readErr == io.EOF {
			break
		}
		if readErr != nil && readErr != io.EOF {
			return errors.Wrapf(readErr, "read input file %s", path)
		}

		if len(line) > s.MaxSegmentSize {
			if err := flush(); err != nil {
				return err
			}
			for start := 0; start < len(line); start += s.MaxSegmentSize {
				end := start + s.MaxSegmentSize
				if end > len(line) {
					end = len(line)
				}
				segPath, err := s.writeSegment(len(*segments), line[start:end])
				if err != nil {
					return err
				}
				*segments = append(*segments, segPath)
			}
		} else {
			if len(*buffer)+len(line)+1 > s.MaxSegmentSize {
				if err := flush(); err != nil {
					return err
				}
			}
			if len(line) > 0 {
				*buffer = append(*buffer, line...)
				*buffer = append(*buffer, '\n')
			}
		}

		if readErr == io.EOF {
			break
		}
	}
	return nil
}

// readLine reads one line with its terminator stripped. It returns
// io.EOF only once the final, possibly-unterminated line has been
// returned, matching bufio.Scanner's semantics without its fixed token
// size limit (lines here may exceed MaxSegmentSize).
func readLine(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadBytes('\n')
	if len(line) == 0 && err != nil {
		return nil, err
	}
	line = trimNewline(line)
	if err == io.EOF {
		return line, io.EOF
	}
	return line, err
}

func trimNewline(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	if n := len(b); n > 0 && b[n-1] == '\r' {
		b = b[:n-1]
	}
	return b
}

func (s *Segmenter) writeSegment(index int, content []byte) (string, error) {
	path := filepath.Join(s.SegmentsDir, fmt.Sprintf("segment_%d", index))
	if err := os.WriteFile(path, content, 0666); err != nil {
		return "", errors.Wrapf(err, "write segment %s", path)
	}
	return path, nil
}
