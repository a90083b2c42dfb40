// Package registry 实现目标登记表
//
// 登记表为每个目标（IPv4 地址 + 端口）保存池化资格和统计计数：
//
//	unknown ──(放入成功)──▶ positive
//	unknown/positive ──(未建立即关闭)──▶ passive
//
// passive 在外部重置（Reset / Reload）前保持不变，passive 目标永不池化。
// 目标条目在首次观察到时创建，生命周期与登记表相同。
//
// 是否参与池化还受 ACL 约束：Deny 规则优先于 Allow 规则，
// 不被允许的目标不会创建条目，也不会被池化。
package registry
