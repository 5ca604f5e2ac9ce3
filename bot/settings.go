package bot

import (
	"sync"

	"github.com/chaos-io/rembg/rembg"
)

// Settings 每个聊天独立的抠图设置
type Settings struct {
	Sticker bool
	Binary  bool
	Mask    bool
}

func (s Settings) Options(base rembg.RemovalOptions) rembg.RemovalOptions {
	return base.WithStickerOutline(s.Sticker).WithBinary(s.Binary)
}

type settingsStore struct {
	mu       sync.Mutex
	defaults Settings
	chats    map[int64]Settings
}

func newSettingsStore(defaults Settings) *settingsStore {
	return &settingsStore{
		defaults: defaults,
		chats:    make(map[int64]Settings),
	}
}

func (s *settingsStore) Get(chatID int64) Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.chats[chatID]; ok {
		return v
	}
	return s.defaults
}

// Update 修改并保存，返回修改后的值
func (s *settingsStore) Update(chatID int64, fn func(*Settings)) Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.chats[chatID]
	if !ok {
		v = s.defaults
	}
	fn(&v)
	s.chats[chatID] = v
	return v
}
