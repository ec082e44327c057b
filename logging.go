package magni

import "github.com/sirupsen/logrus"

// log is the package-wide logger used by the pager and the B+ tree for
// lifecycle and debug events (page reads/writes/evictions, splits, root
// growth). It defaults to logrus's standard logger so importing this
// package has no surprising side effect on global logging configuration;
// call SetLogger to redirect it.
var log logrus.FieldLogger = logrus.StandardLogger()

// SetLogger overrides the logger used by the package. Passing nil restores
// the default (logrus's standard logger).
func SetLogger(l *logrus.Logger) {
	if l == nil {
		log = logrus.StandardLogger()
		return
	}
	log = l
}
