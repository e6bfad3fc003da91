package main

import (
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

type logger bool

func (l logger) Logf(format string, a ...interface{}) {
	if !l {
		return
	}
	log.Infof(format, a...)
}
