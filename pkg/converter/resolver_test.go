package converter_test

import "github.com/stackvity/activity-logger/pkg/converter/handler"

type stubResolver map[string]handler.Handler

func (s stubResolver) Resolve(ext string) (handler.Handler, bool) {
	h, ok := s[ext]
	return h, ok
}
