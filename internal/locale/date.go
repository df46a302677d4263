package locale

import (
	"fmt"
	"time"

	"storyteller/internal/model"
)

// buddhistEraOffset 泰历纪年 = 公历 + 543
const buddhistEraOffset = 543

var thaiShortMonths = [12]string{
	"ม.ค.", "ก.พ.", "มี.ค.", "เม.ย.", "พ.ค.", "มิ.ย.",
	"ก.ค.", "ส.ค.", "ก.ย.", "ต.ค.", "พ.ย.", "ธ.ค.",
}

// FormatDate 列表日期：英文 "Jan 2, 2025"，泰文 "2 ม.ค. 2568"。零值返回空串
func FormatDate(t time.Time, l model.Locale) string {
	if t.IsZero() {
		return ""
	}
	if l == model.LocaleTH {
		return fmt.Sprintf("%d %s %d", t.Day(), thaiShortMonths[t.Month()-1], t.Year()+buddhistEraOffset)
	}
	return t.Format("Jan 2, 2006")
}
