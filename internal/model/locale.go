package model

import (
	"strings"

	"golang.org/x/text/language"
)

// ParseLocale 解析语言标签，只接受基础语言为en或th的标签（如th-TH）
func ParseLocale(s string) (Locale, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultLocale, false
	}
	tag, err := language.Parse(s)
	if err != nil {
		return DefaultLocale, false
	}
	base, conf := tag.Base()
	if conf == language.No {
		return DefaultLocale, false
	}
	l := Locale(base.String())
	if !l.Valid() {
		return DefaultLocale, false
	}
	return l, true
}
