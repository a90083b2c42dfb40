// Package shim 实现拦截层
//
// 调用方通过 Shim 创建的 Socket（实现 net.Conn）建连和拆除，
// Connect / Close / Shutdown 即拦截点：
//
//	Connect  ──▶ Controller.OnConnect ──hit──▶ 嫁接池中连接，立即返回
//	                                  └─miss─▶ 正常拨号
//	Close    ──▶ Controller.OnClose   ──pooled─▶ 只移除描述符引用
//	                                  └──────▶ 原始关闭
//
// Install 之前或 Restore 之后，所有调用直接走原始行为。
// Dup 产生共享同一底层连接的多个描述符，最后一个引用关闭时才关闭连接。
package shim
