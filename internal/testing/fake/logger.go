package fake

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// logBuffer is a buffer that can be written by several goroutines.
type logBuffer struct {
	sync.Mutex
	buffer bytes.Buffer
}

func (b *logBuffer) Write(data []byte) (int, error) {
	b.Lock()
	defer b.Unlock()

	return b.buffer.Write(data)
}

func (b *logBuffer) String() string {
	b.Lock()
	defer b.Unlock()

	return b.buffer.String()
}

// CheckLog returns a logger and a check function. When called, the function
// will verify if the logger has seen the message printed at the level.
func CheckLog(level zerolog.Level, msg string) (zerolog.Logger, func(t *testing.T)) {
	buffer := new(logBuffer)

	check := func(t *testing.T) {
		out := buffer.String()

		require.Contains(t, out, fmt.Sprintf(`"level":"%s"`, level))
		require.Contains(t, out, fmt.Sprintf(`"message":"%s"`, msg))
	}

	return zerolog.New(buffer), check
}
