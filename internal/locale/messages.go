package locale

import (
	"sort"

	"storyteller/internal/model"
)

// 界面文案键
const (
	KeyTopicRequired      = "error.topicRequired"
	KeyTopicTooLong       = "error.topicTooLong"
	KeyGenerationFailed   = "error.generationFailed"
	KeyBackendOverloaded  = "error.backendOverloaded"
	KeyGenerationInFlight = "error.generationInFlight"
	KeyStoryNotFound      = "error.storyNotFound"
	KeyStoryLoadFailed    = "error.storyLoadFailed"
	KeyAudioFailed        = "error.audioFailed"
	KeyExportFailed       = "error.exportFailed"
	KeyExportInFlight     = "error.exportInFlight"
)

var tables = map[model.Locale]map[string]string{
	model.LocaleEN: {
		"app.title":          "AI Story Generator",
		"nav.home":           "Home",
		"nav.stories":        "Saved Stories",
		"compose.topic":      "What should the story be about?",
		"compose.episodes":   "Number of episodes",
		"compose.language":   "Story language",
		"compose.imageModel": "Image model",
		"compose.imageStyle": "Image style (optional)",
		"compose.submit":     "Generate story",
		"generation.working": "Creating your story...",
		"generation.done":    "Your story is ready!",
		"playback.previous":  "Previous",
		"playback.next":      "Next",
		"playback.play":      "Play narration",
		"playback.stop":      "Stop narration",
		"playback.loading":   "Loading audio...",
		"playback.episode":   "Episode",
		"export.button":      "Export video",
		"export.working":     "Exporting video...",
		"export.done":        "Video saved",
		"share.copyLink":     "Copy link",
		"share.copied":       "Link copied",
		"list.title":         "Your stories",
		"list.empty":         "No stories yet. Create your first one!",
		"list.episodes":      "episodes",
		"language.en":        "English",
		"language.th":        "Thai",
		"share.link":         "Share link",
		"style.none":         "No preference",
		"style.cartoon":      "Cartoon",
		"style.watercolor":   "Watercolor",
		"style.retro":        "Retro",

		KeyTopicRequired:      "Please enter a topic.",
		KeyTopicTooLong:       "The topic is too long (500 characters max).",
		KeyGenerationFailed:   "Story generation failed. Please try again.",
		KeyBackendOverloaded:  "The server is taking too long. Try again with fewer episodes.",
		KeyGenerationInFlight: "A story is already being generated.",
		KeyStoryNotFound:      "Story not found.",
		KeyStoryLoadFailed:    "Could not load the story.",
		KeyAudioFailed:        "Could not play the narration.",
		KeyExportFailed:       "Video export failed.",
		KeyExportInFlight:     "An export is already running.",
	},
	model.LocaleTH: {
		"app.title":          "เครื่องสร้างนิทานด้วย AI",
		"nav.home":           "หน้าแรก",
		"nav.stories":        "นิทานที่บันทึกไว้",
		"compose.topic":      "อยากให้นิทานเล่าเรื่องอะไร?",
		"compose.episodes":   "จำนวนตอน",
		"compose.language":   "ภาษาของนิทาน",
		"compose.imageModel": "โมเดลภาพ",
		"compose.imageStyle": "สไตล์ภาพ (ไม่บังคับ)",
		"compose.submit":     "สร้างนิทาน",
		"generation.working": "กำลังสร้างนิทานของคุณ...",
		"generation.done":    "นิทานของคุณพร้อมแล้ว!",
		"playback.previous":  "ก่อนหน้า",
		"playback.next":      "ถัดไป",
		"playback.play":      "เล่นเสียงบรรยาย",
		"playback.stop":      "หยุดเสียงบรรยาย",
		"playback.loading":   "กำลังโหลดเสียง...",
		"playback.episode":   "ตอนที่",
		"export.button":      "ส่งออกวิดีโอ",
		"export.working":     "กำลังส่งออกวิดีโอ...",
		"export.done":        "บันทึกวิดีโอแล้ว",
		"share.copyLink":     "คัดลอกลิงก์",
		"share.copied":       "คัดลอกลิงก์แล้ว",
		"list.title":         "นิทานของคุณ",
		"list.empty":         "ยังไม่มีนิทาน มาสร้างเรื่องแรกกันเถอะ!",
		"list.episodes":      "ตอน",
		"language.en":        "อังกฤษ",
		"language.th":        "ไทย",
		"share.link":         "แชร์ลิงก์",
		"style.none":         "เลือก",
		"style.cartoon":      "การ์ตูน",
		"style.watercolor":   "วาดน้ำ",
		"style.retro":        "เรโทร",

		KeyTopicRequired:      "กรุณาใส่หัวข้อ",
		KeyTopicTooLong:       "หัวข้อยาวเกินไป (สูงสุด 500 ตัวอักษร)",
		KeyGenerationFailed:   "สร้างนิทานไม่สำเร็จ กรุณาลองใหม่",
		KeyBackendOverloaded:  "เซิร์ฟเวอร์ใช้เวลานานเกินไป ลองใหม่โดยลดจำนวนตอน",
		KeyGenerationInFlight: "กำลังสร้างนิทานอยู่แล้ว",
		KeyStoryNotFound:      "ไม่พบนิทาน",
		KeyStoryLoadFailed:    "โหลดนิทานไม่สำเร็จ",
		KeyAudioFailed:        "เล่นเสียงบรรยายไม่สำเร็จ",
		KeyExportFailed:       "ส่งออกวิดีโอไม่สำเร็จ",
		KeyExportInFlight:     "กำลังส่งออกวิดีโออยู่แล้ว",
	},
}

// Keys 全部文案键，按字母排序
func Keys() []string {
	keys := make([]string, 0, len(tables[model.DefaultLocale]))
	for k := range tables[model.DefaultLocale] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
