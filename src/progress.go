package storybook

import "log"

// Progressor receives progress while a book is generated.
type Progressor interface {
	UpdateOutput(message string)
	UpdatePage(done, total int)
}

type nullProgressor struct{}

func (n nullProgressor) UpdateOutput(message string) {}

func (n nullProgressor) UpdatePage(done, total int) {}

func orNull(p Progressor) Progressor {
	if p == nil {
		return nullProgressor{}
	}
	return p
}

// LogProgressor writes progress lines to a logger; the CLI uses it.
type LogProgressor struct {
	Logger *log.Logger
}

func (l LogProgressor) logger() *log.Logger {
	if l.Logger == nil {
		return log.Default()
	}
	return l.Logger
}

func (l LogProgressor) UpdateOutput(message string) {
	l.logger().Println(message)
}

func (l LogProgressor) UpdatePage(done, total int) {
	l.logger().Printf("[%d/%d] page ready", done, total)
}
