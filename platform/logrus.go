// Package platform provides a reference, logrus-backed implementation of
// engine.Platform: the Sleep/Panic/Logger trio an interpreter host supplies
// in place of the bare-metal allocator/sleep/panic hooks a firmware runtime
// would wire up. Mirrors the teacher's getDefaultRecoverFuncForVM panic-hook
// pattern in vm/run.go, replacing its fmt.Printf reporting with structured
// logging.
package platform

import (
	"time"

	"github.com/sirupsen/logrus"

	"amlvm/engine"
)

// Logrus is an engine.Platform backed by a *logrus.Logger. Panic logs the
// FatalError at Error level with its sentinel, path, opcode and pc as
// structured fields, then calls Go's panic so a caller that does not use
// engine.ExecMethod's recover boundary still observes a crash rather than
// silently continuing on a corrupted activation.
type Logrus struct {
	log *logrus.Logger
}

func New(log *logrus.Logger) *Logrus {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Logrus{log: log}
}

func (p *Logrus) Sleep(d time.Duration) {
	time.Sleep(d)
}

func (p *Logrus) Panic(err *engine.FatalError) {
	p.log.WithFields(logrus.Fields{
		"sentinel": err.Sentinel.Error(),
		"path":     err.Path,
		"opcode":   err.Opcode,
		"pc":       err.PC,
	}).Error("fatal interpreter error")
	panic(err)
}

func (p *Logrus) Logger() *logrus.Entry {
	return logrus.NewEntry(p.log)
}
