package bot

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/chaos-io/rembg/rembg"
	"github.com/chaos-io/rembg/util"
)

const (
	msgStart = `👋 你好！我可以帮你去掉图片背景。

📸 直接发送照片或图片文件，我会把抠好的 PNG 发回给你。

📋 命令：
/sticker - 开关贴纸描边
/binary - 开关硬边模式
/mask - 开关是否同时返回 mask
/help - 帮助`

	msgHelp = `ℹ️ 使用方法：

1️⃣ 发送照片（以文件形式发送可以保留原始分辨率）
2️⃣ 等待处理
3️⃣ 收到透明背景的 PNG

当前设置：
贴纸描边：%s
硬边模式：%s
返回 mask：%s`

	msgSendPhoto       = "📸 请发送一张照片或图片文件。"
	msgUnknownCommand  = "❓ 未知命令，使用 /help 查看帮助。"
	msgProcessing      = "⏳ 正在处理..."
	msgProcessingError = "⚠️ 图片处理失败，请换一张再试。"
	msgToggled         = "%s：%s"
)

// sender 只用到 BotAPI 的 Send
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	api      *tgbotapi.BotAPI
	out      sender
	remover  *rembg.Remover
	base     rembg.RemovalOptions
	settings *settingsStore
}

func NewBot(token string, remover *rembg.Remover, base rembg.RemovalOptions) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	util.Logger.Info("authorized on telegram", zap.String("account", api.Self.UserName))

	return &Bot{
		api:      api,
		out:      api,
		remover:  remover,
		base:     base,
		settings: newSettingsStore(Settings{Sticker: base.StickerOutline, Binary: base.Binary}),
	}, nil
}

// Run 阻塞处理消息，ctx 取消后返回
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(msg)
		return
	}

	fileID, ok := imageFileID(msg)
	if !ok {
		b.sendMessage(msg.Chat.ID, msgSendPhoto)
		return
	}

	b.sendMessage(msg.Chat.ID, msgProcessing)

	img, err := b.downloadImage(fileID)
	if err != nil {
		util.Logger.Warn("failed to download image", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		return
	}

	if err := b.cutout(ctx, msg.Chat.ID, img); err != nil {
		util.Logger.Error("failed to process image", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
		b.sendMessage(msg.Chat.ID, msgProcessingError)
	}
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.sendMessage(chatID, msgStart)

	case "help":
		s := b.settings.Get(chatID)
		b.sendMessage(chatID, fmt.Sprintf(msgHelp, onOff(s.Sticker), onOff(s.Binary), onOff(s.Mask)))

	case "sticker":
		s := b.settings.Update(chatID, func(s *Settings) { s.Sticker = !s.Sticker })
		b.sendMessage(chatID, fmt.Sprintf(msgToggled, "贴纸描边", onOff(s.Sticker)))

	case "binary":
		s := b.settings.Update(chatID, func(s *Settings) { s.Binary = !s.Binary })
		b.sendMessage(chatID, fmt.Sprintf(msgToggled, "硬边模式", onOff(s.Binary)))

	case "mask":
		s := b.settings.Update(chatID, func(s *Settings) { s.Mask = !s.Mask })
		b.sendMessage(chatID, fmt.Sprintf(msgToggled, "返回 mask", onOff(s.Mask)))

	default:
		b.sendMessage(chatID, msgUnknownCommand)
	}
}

// cutout 抠图并把结果以文件形式发回，避免 Telegram 压缩掉透明度
func (b *Bot) cutout(ctx context.Context, chatID int64, img image.Image) error {
	s := b.settings.Get(chatID)
	result, err := b.remover.Remove(ctx, img, s.Options(b.base))
	if err != nil {
		return err
	}

	if err := b.sendPNG(chatID, "result.png", result.Image()); err != nil {
		return err
	}
	if s.Mask {
		return b.sendPNG(chatID, "mask.png", result.Mask())
	}
	return nil
}

func (b *Bot) sendPNG(chatID int64, name string, img image.Image) error {
	var buf bytes.Buffer
	if err := util.EncodeImage(&buf, img, util.PNG, 0); err != nil {
		return err
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: buf.Bytes()})
	if _, err := b.out.Send(doc); err != nil {
		return fmt.Errorf("send %s: %w", name, err)
	}
	return nil
}

func (b *Bot) downloadImage(fileID string) (image.Image, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return util.DownloadImage(file.Link(b.api.Token))
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.out.Send(msg); err != nil {
		util.Logger.Warn("failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// imageFileID 照片取最大尺寸；文件只接受 image/*
func imageFileID(msg *tgbotapi.Message) (string, bool) {
	if len(msg.Photo) > 0 {
		return msg.Photo[len(msg.Photo)-1].FileID, true
	}
	if msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/") {
		return msg.Document.FileID, true
	}
	return "", false
}

func onOff(v bool) string {
	if v {
		return "开"
	}
	return "关"
}
