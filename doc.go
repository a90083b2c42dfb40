// Package connp 为 Go 客户端提供透明的 TCP 连接复用
//
// 调用方照常"建连 → 读写 → 关闭"，关闭时连接被回收进进程内套接字池；
// 之后对同一目标 (IPv4, port) 的建连直接从池中取出已建立的连接，
// 省去三次握手与慢启动。
//
// # 组件
//
//   - Registry: 目标 ACL、资格 (unknown / positive / passive) 与计数器
//   - Pool: 固定容量的套接字池，双哈希索引 + 遍历链表 + 空闲栈
//   - Reaper: 后台回收器，异步关闭与周期清扫
//   - Controller: 建连 / 关闭拦截点的决策逻辑
//   - Shim: 拦截层，提供实现 net.Conn 的 Socket 与 Dialer
//
// # 快速开始
//
//	sub, err := connp.New(
//	    connp.WithAllow("10.0.0.0/8:6379"),
//	    connp.WithPoolCapacity(64),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := sub.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer sub.Stop(context.Background())
//
//	conn, err := sub.Dialer().DialContext(ctx, "tcp", "10.0.0.5:6379")
//	// ... 读写 ...
//	conn.Close() // 连接回到池中
//
// # 启停顺序
//
// 启动依次初始化 Registry → Pool → Reaper → Controller → Shim，任一步失败时
// 已启动的组件按相反顺序回滚。停止时先恢复拦截层，再依次停止控制器、回收器、
// 池与登记表，最后等待一个固定的宽限期，让与拆除竞争的在途调用退出。
package connp
