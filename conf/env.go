package conf

import (
	"bytes"
	"io"
	"os"
)

// NewEnvExpandedReader replaces ${VAR} and $VAR references with values from the environment.
func NewEnvExpandedReader(r io.Reader) io.Reader {
	return &envExpandedReader{src: r}
}

type envExpandedReader struct {
	src      io.Reader
	expanded *bytes.Reader
}

func (r *envExpandedReader) Read(p []byte) (int, error) {
	if r.expanded == nil {
		raw, err := io.ReadAll(r.src)
		if err != nil {
			return 0, err
		}

		r.expanded = bytes.NewReader([]byte(os.ExpandEnv(string(raw))))
	}

	return r.expanded.Read(p)
}
