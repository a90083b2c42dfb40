// Package types 定义 connp 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他 connp 内部包。
// 所有类型都是纯值类型，用于在各组件间传递数据。
//
// # 文件组织
//
//   - destination.go: Destination（IPv4 地址 + 端口）
//   - state.go: Eligibility、CounterKind、ConnectResult、CloseResult、
//     SocketState、Protocol、Family、Role、Descriptor
package types
