package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/renameio/v2"
)

const (
	DefaultFileName = "story"
	videoExt        = ".mp4"
	maxNameRunes    = 80
)

// Saver 接收导出的视频，相当于浏览器端触发下载
type Saver interface {
	Save(fileName string, data []byte) (string, error)
}

// FileName 根据故事标题生成下载文件名，标题为空时使用通用名称
func FileName(title string) string {
	var b strings.Builder
	n := 0
	lastDash := false
	for _, r := range strings.TrimSpace(title) {
		if n >= maxNameRunes {
			break
		}
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r):
			b.WriteRune(r)
			lastDash = false
		case r == '-' || r == '_' || unicode.IsSpace(r):
			if !lastDash && b.Len() > 0 {
				b.WriteRune('-')
				lastDash = true
			}
		default:
			continue
		}
		n++
	}
	name := strings.Trim(b.String(), "-")
	if name == "" {
		name = DefaultFileName
	}
	return name + videoExt
}

// FileSaver 保存到下载目录，写入是原子的
type FileSaver struct {
	Dir string
}

func NewFileSaver(dir string) *FileSaver {
	return &FileSaver{Dir: dir}
}

func (s *FileSaver) Save(fileName string, data []byte) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	path := filepath.Join(s.Dir, filepath.Base(fileName))
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write video: %w", err)
	}
	return path, nil
}
