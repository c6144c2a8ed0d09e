package wlog

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

// LevelFlag adapts a logrus.Level to pflag.Value so --log-level can be
// parsed directly off the command line and applied to Logger immediately
// on Set.
type LevelFlag struct {
	Level logrus.Level
}

var _ pflag.Value = (*LevelFlag)(nil)

// NewLevelFlag returns a flag defaulting to info.
func NewLevelFlag() *LevelFlag {
	return &LevelFlag{Level: logrus.InfoLevel}
}

func (l *LevelFlag) String() string {
	return l.Level.String()
}

func (l *LevelFlag) Set(s string) error {
	lvl, err := logrus.ParseLevel(s)
	if err != nil {
		return err
	}
	l.Level = lvl
	Logger.SetLevel(lvl)
	return nil
}

func (l *LevelFlag) Type() string {
	return "level"
}
