package filesystem

import (
	"bufio"
	"bytes"
	stderrors "errors"
	"io"
	"strings"

	"github.com/brettbedarf/filenode/config"
)

// regionStripper removes ignore regions from consecutive lines of one stream.
// A region without End ends at the end of the line, others may span lines.
type regionStripper struct {
	regions []config.IgnoreRegion
	open    int // index of the region spanning into the next line, -1 if none
}

func newRegionStripper(regions []config.IgnoreRegion) *regionStripper {
	return &regionStripper{regions: regions, open: -1}
}

func (s *regionStripper) strip(line string) string {
	var out strings.Builder
	for len(line) > 0 {
		if s.open >= 0 {
			end := s.regions[s.open].End
			i := strings.Index(line, end)
			if i < 0 {
				return out.String()
			}
			line = line[i+len(end):]
			s.open = -1
			continue
		}

		first, idx := -1, -1
		for k, r := range s.regions {
			if r.Start == "" {
				continue
			}
			if i := strings.Index(line, r.Start); i >= 0 && (first < 0 || i < first) {
				first, idx = i, k
			}
		}
		if idx < 0 {
			out.WriteString(line)
			break
		}
		out.WriteString(line[:first])
		r := s.regions[idx]
		line = line[first+len(r.Start):]
		if r.End == "" {
			break
		}
		s.open = idx
	}
	return out.String()
}

// lineSource yields the significant lines of a stream. Lines consisting only
// of ignored text are dropped. Line length is not limited.
type lineSource struct {
	r     *bufio.Reader
	line  []byte
	strip *regionStripper
}

func newLineSource(r io.Reader, regions []config.IgnoreRegion) *lineSource {
	return &lineSource{r: bufio.NewReaderSize(r, 64*config.KB), strip: newRegionStripper(regions)}
}

// readLine returns the next line without its CR/LF terminator
func (l *lineSource) readLine() (string, bool, error) {
	l.line = l.line[:0]
	for {
		frag, err := l.r.ReadSlice('\n')
		l.line = append(l.line, frag...)
		switch {
		case err == nil:
		case stderrors.Is(err, bufio.ErrBufferFull):
			continue
		case err == io.EOF:
			if len(l.line) == 0 {
				return "", false, nil
			}
		default:
			return "", false, err
		}
		line := bytes.TrimSuffix(l.line, []byte{'\n'})
		return string(bytes.TrimSuffix(line, []byte{'\r'})), true, nil
	}
}

func (l *lineSource) next() (string, bool, error) {
	for {
		raw, ok, err := l.readLine()
		if !ok || err != nil {
			return "", false, err
		}
		if len(l.strip.regions) == 0 {
			return raw, true, nil
		}
		line := l.strip.strip(raw)
		if strings.TrimSpace(line) == "" && strings.TrimSpace(raw) != "" {
			continue
		}
		return line, true, nil
	}
}

// linesEqual compares two streams line by line after removing ignore regions
func linesEqual(a, b io.Reader, regions []config.IgnoreRegion) (bool, error) {
	la, lb := newLineSource(a, regions), newLineSource(b, regions)
	for {
		sa, okA, err := la.next()
		if err != nil {
			return false, err
		}
		sb, okB, err := lb.next()
		if err != nil {
			return false, err
		}
		if !okA || !okB {
			return okA == okB, nil
		}
		if sa != sb {
			return false, nil
		}
	}
}

// bytesEqual compares two streams chunk by chunk through bufA and bufB,
// which must have the same length
func bytesEqual(a, b io.Reader, bufA, bufB []byte) (bool, error) {
	for {
		na, err := io.ReadFull(a, bufA)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return false, err
		}
		nb, err := io.ReadFull(b, bufB)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return false, err
		}
		if na != nb || !bytes.Equal(bufA[:na], bufB[:nb]) {
			return false, nil
		}
		if na < len(bufA) {
			return true, nil
		}
	}
}

// deviceReader converts read failures of a device stream at the device boundary
type deviceReader struct {
	r    io.Reader
	path string
}

func (d *deviceReader) Read(b []byte) (int, error) {
	n, err := d.r.Read(b)
	if err != nil && err != io.EOF {
		err = deviceError(err, "read", d.path)
	}
	return n, err
}
