// Package sockpool 实现固定容量的套接字池
//
// # 结构
//
// 池由 N 个固定槽位组成（arena + 下标），每个槽位同时挂在四个索引上：
//
//   - 主哈希链（按目标）：只包含可借出的槽位
//   - 副哈希链（按目标 + 连接 ID）：包含所有已分配槽位，用于归还
//   - 遍历链表：包含所有已分配槽位，供清扫和淘汰扫描
//   - 空闲栈：包含所有未分配槽位
//
// 借出的槽位从主哈希链摘除，"使用中"由索引成员关系隐式表达。
//
// # 操作
//
//   - Borrow: 沿主哈希链找第一个已建立且未借出的连接
//   - Release: 沿副哈希链找到借出的槽位并重新挂回主哈希链，重复归还为空操作
//   - Insert: 弹出空闲槽位；池满且启用 LRU 时淘汰使用次数最少的槽位
//   - Sweep: 回收连接失效、空闲超时或目标被降级的未借出槽位
//
// 所有操作由一把池锁串行化（互斥锁或自旋锁，由配置选择），
// 临界区内不做任何可能阻塞的 I/O：淘汰和清扫只把描述符交给回收器的关闭队列。
//
// # 淘汰顺序
//
// 候选：已分配、未借出、目标不同于新插入目标、描述符已登记到回收器。
// 在候选中取使用次数最少者；相同时取最早归还者；再相同取下标最小者。
package sockpool
