// Package interfaces 定义 connp 组件间接口
//
// 各组件只依赖本包的接口，具体实现通过 fx 注入：
//
//   - Registry: 目标 ACL、资格与计数器（internal/core/registry）
//   - SocketPool / Sweeper: 套接字池（internal/core/sockpool）
//   - Reaper / CloseQueue: 后台回收器（internal/core/reaper）
//   - Controller: 建连 / 关闭拦截决策（internal/core/controller）
//   - Socket / PooledConn: 被拦截的套接字与可池化连接（internal/core/shim、internal/core/tcpconn）
package interfaces
