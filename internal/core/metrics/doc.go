// Package metrics 提供 Prometheus 指标采集
//
// Collector 在每次抓取时读取各组件的统计快照，不在热路径上额外计数：
//
//   - 按目标：connp_destination_{all,idle,hit,miss}_total、connp_destination_eligibility
//   - 套接字池：容量、已分配、借出中、淘汰、清扫
//   - 回收器、控制器、拦截层的累计计数
//
// 使用示例：
//
//	c := metrics.NewCollector(metrics.Sources{Registry: reg, Pool: pool})
//	promReg := prometheus.NewRegistry()
//	promReg.MustRegister(c)
//	http.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
package metrics
