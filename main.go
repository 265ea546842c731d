package main

import (
	"embed"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/windows"

	"eqwatch/internal/config"
)

//go:embed all:frontend/dist
var assets embed.FS

func configPath() string {
	if p := os.Getenv("EQWATCH_CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "eqwatch.toml"
	}
	return filepath.Join(dir, "eqwatch", "eqwatch.toml")
}

func main() {
	// .env overrides are for development; missing is fine.
	godotenv.Load()

	cfg := config.Load(configPath())
	if dir := os.Getenv("EQWATCH_LOG_DIR"); dir != "" {
		cfg.LogDir = dir
	}

	// Create an instance of the app structure
	app := NewApp(cfg)

	// Create application with options
	err := wails.Run(&options.App{
		Title:         "EQWatch",
		Width:         340,
		Height:        560,
		StartHidden:   false,
		Frameless:     true,
		AlwaysOnTop:   true,
		DisableResize: false,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		BackgroundColour: &options.RGBA{R: 20, G: 20, B: 20, A: 255},
		OnStartup:        app.startup,
		OnShutdown:       app.shutdown,
		Bind: []interface{}{
			app,
		},
		Windows: &windows.Options{
			DisableWindowIcon: true,
		},
	})

	if err != nil {
		println("Error:", err.Error())
	}
}
