// Package wlog is a tagged-logging shim in the shape of rclone's
// fs.Debugf(tag, format, args...) calls, backed by logrus.
package wlog

import "github.com/sirupsen/logrus"

// Logger is the package-wide logrus instance; tests may swap its output.
var Logger = logrus.StandardLogger()

func Debugf(tag, format string, args ...interface{}) {
	Logger.WithField("tag", tag).Debugf(format, args...)
}

func Infof(tag, format string, args ...interface{}) {
	Logger.WithField("tag", tag).Infof(format, args...)
}

func Errorf(tag, format string, args ...interface{}) {
	Logger.WithField("tag", tag).Errorf(format, args...)
}
