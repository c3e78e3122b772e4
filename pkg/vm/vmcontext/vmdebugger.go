package vmcontext

import (
	"fmt"
	"os"
	"strings"
)

// ActorLog buffers the debug output actors emit through the log syscall
// so a whole execution can be inspected after the fact. It is only
// allocated when actor debugging is enabled.
type ActorLog struct {
	buf *strings.Builder
}

func NewActorLog() *ActorLog {
	return &ActorLog{buf: &strings.Builder{}}
}

func (al *ActorLog) Printf(format string, args ...interface{}) {
	fmt.Fprintf(al.buf, format, args...)
	al.buf.WriteString("\n")
}

// Dump prints the buffered output to stdout.
func (al *ActorLog) Dump() {
	fmt.Println(al.buf.String())
}

// SaveTo writes the buffered output to a file.
func (al *ActorLog) SaveTo(fileName string) error {
	return os.WriteFile(fileName, []byte(al.buf.String()), 0o644)
}
