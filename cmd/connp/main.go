// Package main 提供 connp 命令行入口
//
// 通过池化拨号器对目标反复执行"建连 → 请求 → 关闭"，输出命中率统计；
// 可选在 -metrics 地址上暴露 Prometheus 指标。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-connp"
	"github.com/dep2p/go-connp/config"
	"github.com/dep2p/go-connp/pkg/lib/log"
)

var logger = log.Logger("connp/cmd")

var (
	configFile  = flag.String("config", "", "配置文件路径（.json / .yaml）")
	target      = flag.String("target", "", "目标地址 ip:port")
	requests    = flag.Int("requests", 100, "每个并发的请求数")
	concurrency = flag.Int("concurrency", 4, "并发数")
	payload     = flag.String("payload", "PING\r\n", "每次请求发送的数据")
	metricsAddr = flag.String("metrics", "", "Prometheus 指标监听地址（为空则不启用）")
	hold        = flag.Bool("hold", false, "请求完成后保持运行直到收到退出信号")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()
	if *target == "" {
		flag.Usage()
		return errors.New("缺少 -target")
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sub, err := connp.Start(ctx, connp.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}
	defer func() {
		if _, err := sub.ExitPrepare(); err != nil {
			logger.Warn("退出前回收失败", "error", err)
		}
		if err := sub.Stop(context.Background()); err != nil {
			logger.Error("停止失败", "error", err)
		}
	}()

	if *metricsAddr != "" {
		srv := serveMetrics(sub, *metricsAddr)
		defer func() { _ = srv.Close() }()
	}

	begin := time.Now()
	failures := drive(ctx, sub)
	elapsed := time.Since(begin)

	printStats(sub, elapsed, failures)

	if *hold {
		fmt.Println("按 Ctrl+C 退出")
		<-ctx.Done()
	}
	return nil
}

// loadConfig 加载配置文件并应用环境变量覆盖
func loadConfig() (*config.Config, error) {
	cfg := config.NewConfig()
	if *configFile != "" {
		var err error
		cfg, err = config.LoadFile(*configFile)
		if err != nil {
			return nil, fmt.Errorf("加载配置文件失败: %w", err)
		}
	}
	applyEnvOverrides(cfg)

	cfg, err := config.ValidateAndFix(cfg)
	if err != nil {
		return nil, err
	}
	if err := config.ValidateCompatibility(cfg); err != nil {
		logger.Warn("配置兼容性检查未通过", "error", err)
	}
	return cfg, nil
}

// drive 并发执行请求，返回失败次数
func drive(ctx context.Context, sub *connp.Subsystem) uint64 {
	var failures atomic.Uint64
	dial := sub.Dialer().DialContext

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < *concurrency; w++ {
		worker := w
		g.Go(func() error {
			for i := 0; i < *requests; i++ {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if err := request(gctx, dial, *target); err != nil {
					logger.Debug("请求失败", "worker", worker, "seq", i, "error", err)
					failures.Add(1)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Warn("请求被中断", "error", err)
	}
	return failures.Load()
}

type dialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// request 执行一次"建连 → 写 → 读 → 关闭"
func request(ctx context.Context, dial dialFunc, address string) error {
	conn, err := dial(ctx, "tcp", address)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	if err := conn.SetDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return err
	}
	if _, err := io.WriteString(conn, *payload); err != nil {
		return err
	}
	buf := make([]byte, 4096)
	_, err = conn.Read(buf)
	return err
}

// serveMetrics 在指定地址暴露 /metrics
func serveMetrics(sub *connp.Subsystem, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(sub.Gatherer(), promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("指标服务退出", "error", err)
		}
	}()
	logger.Info("指标服务已启动", "addr", addr)
	return srv
}

func printStats(sub *connp.Subsystem, elapsed time.Duration, failures uint64) {
	st := sub.Stats()
	total := st.Controller.Connects
	var ratio float64
	if total > 0 {
		ratio = float64(st.Controller.Hits) / float64(total) * 100
	}

	fmt.Println("═══════════════════════════════════════════════")
	fmt.Printf("目标:       %s\n", *target)
	fmt.Printf("耗时:       %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("建连:       %d（命中 %d，%.1f%%）\n", total, st.Controller.Hits, ratio)
	fmt.Printf("实际拨号:   %d（失败 %d）\n", st.Shim.Dials, st.Shim.DialFailures)
	fmt.Printf("入池:       %d，归还 %d，降级 %d\n", st.Controller.Pooled, st.Controller.Returned, st.Controller.Demotions)
	fmt.Printf("池:         %d/%d 已占用，淘汰 %d\n", st.Pool.Allocated, st.Pool.Capacity, st.Pool.Evictions)
	fmt.Printf("请求失败:   %d\n", failures)
	for _, e := range st.Destinations {
		fmt.Printf("  %-21s %-8s all=%d hit=%d miss=%d idle=%d\n",
			e.Destination, e.Eligibility, e.All, e.Hit, e.Miss, e.Idle)
	}
	fmt.Println("═══════════════════════════════════════════════")
}
