// @title Booknotes API
// @version 1.0
// @description 个人博客与作品集内容管理后端
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:3001
// @BasePath /
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description 格式: Bearer <token>

// @externalDocs.description OpenAPI
// @externalDocs.url https://swagger.io/resources/open-api/
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
	"golang.org/x/net/http2"
	"gorm.io/gorm"

	"github.com/weiwangfds/booknotes/config"
	"github.com/weiwangfds/booknotes/internal/database"
	"github.com/weiwangfds/booknotes/internal/i18n"
	"github.com/weiwangfds/booknotes/internal/logger"
	"github.com/weiwangfds/booknotes/internal/media"
	"github.com/weiwangfds/booknotes/internal/metrics"
	"github.com/weiwangfds/booknotes/internal/router"
)

func main() {
	app := &cli.App{
		Name:  "booknotes",
		Usage: "个人博客与作品集内容管理后端",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径，默认在 . 和 ./config 下查找 config.yaml",
				EnvVars: []string{config.EnvPrefix + "_CONFIG_FILE"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "启动HTTP服务",
				Action: serve,
			},
			{
				Name:  "create-admin",
				Usage: "创建管理员账号，已存在时不做修改",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Usage: "默认使用配置中的 auth.admin_username"},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "默认使用配置中的 auth.admin_password"},
				},
				Action: createAdmin,
			},
			{
				Name:  "export",
				Usage: "导出全部数据到zip文件",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "输出文件路径"},
				},
				Action: exportBackup,
			},
			{
				Name:      "import",
				Usage:     "从zip文件追加导入数据",
				ArgsUsage: "<archive.zip>",
				Action:    importBackup,
			},
		},
		// 不带子命令时启动服务
		Action: serve,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// deps 命令共用的依赖
type deps struct {
	cfg       *config.Config
	db        *gorm.DB
	store     *media.Store
	registry  *prometheus.Registry
	collector *metrics.Collector
	services  *router.Services
}

// setup 加载配置并初始化日志、数据库、媒体存储和服务
func setup(c *cli.Context) (*deps, error) {
	cfg, err := config.LoadFrom(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}

	if err := logger.Init(&cfg.Log); err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	if cfg.I18n.DefaultLanguage != "" {
		i18n.GetInstance().SetDefaultLanguage(cfg.I18n.DefaultLanguage)
	}

	db, err := database.Init(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("初始化数据库失败: %w", err)
	}

	backend, err := media.NewBackend(cfg.Storage)
	if err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("初始化媒体存储失败: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)
	store := media.NewStore(backend, media.WithRecorder(collector))

	return &deps{
		cfg:       cfg,
		db:        db,
		store:     store,
		registry:  registry,
		collector: collector,
		services:  router.NewServices(db, store, cfg, collector),
	}, nil
}

func (rt *deps) close() {
	if err := database.Close(rt.db); err != nil {
		logger.Errorf("关闭数据库失败: %v", err)
	}
}

func serve(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.close()
	cfg := rt.cfg

	if err := rt.store.Ping(c.Context); err != nil {
		return fmt.Errorf("媒体存储不可用: %w", err)
	}

	if cfg.Auth.BootstrapAdmin {
		created, err := rt.services.Auth.EnsureAdmin(c.Context, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword)
		if err != nil {
			return fmt.Errorf("创建默认管理员失败: %w", err)
		}
		if created {
			logger.Warnf("已创建默认管理员 %s，请尽快修改密码", cfg.Auth.AdminUsername)
		}
	}

	var gatherer prometheus.Gatherer
	if cfg.Metrics.Enabled {
		gatherer = rt.registry
	}
	r := router.NewRouter(router.Options{
		Config:    cfg,
		DB:        rt.db,
		Store:     rt.store,
		Services:  rt.services,
		Collector: rt.collector,
		Gatherer:  gatherer,
	})
	defer r.Close()

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r.GetEngine(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	if cfg.Server.EnableHTTPS {
		srv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			NextProtos: []string{"h2", "http/1.1"},
		}
		// 如果启用HTTP/2，配置HTTP/2支持
		if cfg.Server.EnableHTTP2 {
			if err := http2.ConfigureServer(srv, &http2.Server{}); err != nil {
				return fmt.Errorf("配置HTTP/2失败: %w", err)
			}
		}
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.Server.EnableHTTPS {
			logger.Infof("HTTPS服务器启动在 %s (HTTP/2: %v)", srv.Addr, cfg.Server.EnableHTTP2)
			err = srv.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			logger.Infof("HTTP服务器启动在 %s", srv.Addr)
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("服务器启动失败: %w", err)
		}
		return nil
	case <-quit:
	}

	logger.Info("正在关闭服务器...")

	// 优雅关闭服务器
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("服务器强制关闭: %w", err)
	}

	logger.Info("服务器已退出")
	return nil
}

func createAdmin(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.close()

	username, password := adminCredentials(c.String("username"), c.String("password"), rt.cfg.Auth)
	created, err := rt.services.Auth.EnsureAdmin(c.Context, username, password)
	if err != nil {
		return err
	}
	if !created {
		logger.Infof("管理员 %s 已存在，未做修改", username)
		return nil
	}
	logger.Infof("管理员 %s 创建成功", username)
	return nil
}

// adminCredentials 命令行未指定时回退到配置中的管理员账号
func adminCredentials(username, password string, auth config.AuthConfig) (string, string) {
	if username == "" {
		username = auth.AdminUsername
	}
	if password == "" {
		password = auth.AdminPassword
	}
	return username, password
}

func exportBackup(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.close()

	path := c.String("output")
	if path == "" {
		path = fmt.Sprintf("booknotes-backup-%s.zip", time.Now().Format("20060102-150405"))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建备份文件失败: %w", err)
	}
	if err := rt.services.Exporter.Export(c.Context, f); err != nil {
		f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("写入备份文件失败: %w", err)
	}

	logger.WithField("path", path).Info("备份导出完成")
	return nil
}

func importBackup(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("用法: booknotes import <archive.zip>", 2)
	}

	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.close()

	f, err := os.Open(c.Args().First())
	if err != nil {
		return fmt.Errorf("打开备份文件失败: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("读取备份文件失败: %w", err)
	}

	report, err := rt.services.Importer.Import(c.Context, f, info.Size())
	if err != nil {
		return err
	}

	for _, w := range report.Warnings {
		logger.Warn(w)
	}
	logger.Info(report.Summary())
	return nil
}
