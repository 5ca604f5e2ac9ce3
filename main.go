package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/chaos-io/rembg/bot"
	"github.com/chaos-io/rembg/config"
	"github.com/chaos-io/rembg/rembg"
	"github.com/chaos-io/rembg/rembg/engine"
	"github.com/chaos-io/rembg/server"
	"github.com/chaos-io/rembg/util"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const usage = `rembg - 图片去背景

用法:
  rembg -i input.jpg -o output.png [flags]
  rembg serve [flags]
  rembg bot [flags]

参数:
`

func main() {
	cmd, args := splitCommand(os.Args[1:])

	flags := newFlagSet()
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	configPath, _ := flags.GetString("config")
	cfg, err := config.Load(configPath, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := util.InitLogger(cfg.Log.Mode); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	util.Logger.Debug("starting rembg",
		zap.String("command", cmd),
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cmd, cfg, flags)
	stop()

	if err != nil {
		util.Logger.Error("rembg failed", zap.String("command", cmd), zap.Error(err))
		util.Sync()
		os.Exit(1)
	}
	util.Sync()
}

func splitCommand(args []string) (string, []string) {
	if len(args) > 0 {
		switch args[0] {
		case "serve", "bot":
			return args[0], args[1:]
		}
	}
	return "remove", args
}

func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("rembg", pflag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}

	flags.StringP("input", "i", "", "输入图片路径或 http(s) 地址")
	flags.StringP("output", "o", "", "输出路径，扩展名决定格式 (png/jpg/webp)")
	flags.StringP("model", "m", engine.DefaultModel, "推理服务上的模型名")
	flags.StringP("engine", "u", "http://localhost:8000", "推理服务地址")
	flags.IntP("quality", "q", util.DefaultQuality, "JPEG 质量 (1-100)")
	flags.IntP("threshold", "t", int(rembg.DefaultThreshold), "前景阈值 (0-255)")
	flags.BoolP("binary", "b", false, "硬边模式，alpha 只有 0 和 255")
	flags.Bool("sticker", false, "给主体加黑色贴纸描边")
	flags.Bool("trim", false, "裁掉主体外的透明区域")
	flags.Int("max-size", 0, "输入最长边超过该值时先等比缩小，0 不限制")
	flags.BoolP("save-mask", "s", false, "同时保存 mask，文件名为 <output>_mask")
	flags.String("heatmap", "", "保存前景概率热力图到该路径")
	flags.StringP("config", "c", "config.yaml", "配置文件路径")
	flags.String("log-mode", "debug", "日志模式 (debug/release)")
	return flags
}

func run(ctx context.Context, cmd string, cfg *config.Config, flags *pflag.FlagSet) error {
	remote := engine.NewRemote(cfg.Engine.URL, modelName(cfg.Engine.Model),
		engine.WithInputName(cfg.Engine.InputName),
		engine.WithOutputName(cfg.Engine.OutputName),
		engine.WithTimeout(cfg.Engine.Timeout))

	remover := rembg.NewRemover(remote,
		rembg.WithInputSize(cfg.Engine.InputWidth, cfg.Engine.InputHeight),
		rembg.WithObserver(util.StageLogger(zap.String("command", cmd))))

	opts := removalOptions(cfg)

	switch cmd {
	case "serve":
		return serve(ctx, cfg, remover, remote, opts)
	case "bot":
		return runBot(ctx, cfg, remover, opts)
	}
	return removeFile(ctx, cfg, flags, remover, opts)
}

func removeFile(ctx context.Context, cfg *config.Config, flags *pflag.FlagSet, remover *rembg.Remover, opts rembg.RemovalOptions) error {
	defer util.Trace("remove background")()

	input, _ := flags.GetString("input")
	output, _ := flags.GetString("output")
	heatmapPath, _ := flags.GetString("heatmap")
	saveMask, _ := flags.GetBool("save-mask")

	if input == "" || (output == "" && heatmapPath == "") {
		flags.Usage()
		return fmt.Errorf("%w: -i and -o are required", rembg.ErrInvalidInput)
	}
	// 先检查输出格式，避免推理完才发现保存不了
	for _, p := range []string{output, heatmapPath} {
		if p == "" {
			continue
		}
		if _, err := util.FormatFromPath(p); err != nil {
			return err
		}
	}

	img, err := loadImage(input)
	if err != nil {
		return fmt.Errorf("failed to load image: %w", err)
	}
	img = util.FitWithin(img, cfg.Removal.MaxSize)
	util.Logger.Info("image loaded",
		zap.String("input", input),
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()))

	if output != "" {
		result, err := remover.Remove(ctx, img, opts)
		if err != nil {
			return err
		}
		out, mask := result.Parts()
		if cfg.Removal.Trim {
			out, mask = util.TrimResult(out, mask)
		}

		if err := ensureDir(output); err != nil {
			return err
		}
		if err := util.SaveImage(out, output, cfg.Output.Quality); err != nil {
			return fmt.Errorf("failed to save result: %w", err)
		}
		util.Logger.Info("result saved", zap.String("output", output))

		if saveMask {
			maskPath := util.MaskPath(output)
			// mask 保存失败不影响主结果
			if err := saveMaskImage(mask, maskPath); err != nil {
				util.Logger.Warn("failed to save mask", zap.String("path", maskPath), zap.Error(err))
			} else {
				util.Logger.Info("mask saved", zap.String("path", maskPath))
			}
		}
	}

	if heatmapPath != "" {
		heat, err := remover.Heatmap(ctx, img)
		if err != nil {
			return err
		}
		if err := ensureDir(heatmapPath); err != nil {
			return err
		}
		if err := util.SaveImage(heat, heatmapPath, cfg.Output.Quality); err != nil {
			return fmt.Errorf("failed to save heatmap: %w", err)
		}
		util.Logger.Info("heatmap saved", zap.String("path", heatmapPath))
	}

	return nil
}

func serve(ctx context.Context, cfg *config.Config, remover *rembg.Remover, remote *engine.Remote, opts rembg.RemovalOptions) error {
	store, err := server.NewResultStore(cfg.Output.Dir)
	if err != nil {
		return err
	}

	var cache server.ResultCache = server.NopCache{}
	redisCache := server.NewRedisCache(&cfg.Redis)
	if err := redisCache.Ping(ctx); err != nil {
		util.Logger.Warn("redis connection failed, cache disabled", zap.Error(err))
	} else {
		util.Logger.Info("redis connected successfully")
		cache = redisCache
	}
	defer redisCache.Close()

	sweeper, err := server.NewSweeper(store, cfg.Output.CleanupSpec, cfg.Output.Retention)
	if err != nil {
		return fmt.Errorf("invalid output.cleanup_spec: %w", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	h := server.NewHandler(remover, store, cache,
		server.WithDefaults(opts),
		server.WithQuality(cfg.Output.Quality),
		server.WithTrim(cfg.Removal.Trim),
		server.WithMaxSize(cfg.Removal.MaxSize),
		server.WithProber(remote))

	return server.New(&cfg.Server, h).Run(ctx)
}

func runBot(ctx context.Context, cfg *config.Config, remover *rembg.Remover, opts rembg.RemovalOptions) error {
	if cfg.Telegram.Token == "" {
		return errors.New("telegram token is empty, set TELEGRAM_TOKEN or telegram.token")
	}
	b, err := bot.NewBot(cfg.Telegram.Token, remover, opts)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}
	return b.Run(ctx)
}

func removalOptions(cfg *config.Config) rembg.RemovalOptions {
	return rembg.DefaultOptions().
		WithThreshold(uint8(cfg.Removal.Threshold)).
		WithBinary(cfg.Removal.Binary).
		WithStickerOutline(cfg.Removal.Sticker)
}

func loadImage(input string) (image.Image, error) {
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		return util.DownloadImage(input)
	}
	return util.OpenImage(input)
}

// saveMaskImage png / webp 存成白色+alpha，jpeg 没有透明度就存灰度
func saveMaskImage(mask *image.Gray, path string) error {
	format, err := util.FormatFromPath(path)
	if err != nil {
		return err
	}
	if format == util.JPEG {
		return util.SaveImage(mask, path, util.DefaultQuality)
	}
	return util.SaveImage(util.MaskToRGBA(mask), path, 0)
}

// modelName 兼容 -m u2net.onnx 这种写法
func modelName(m string) string {
	base := filepath.Base(m)
	return strings.TrimSuffix(base, ".onnx")
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, os.ModePerm)
}
