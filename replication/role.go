// Package replication 按房间划分的实体状态复制：权威端存储与发布，跟随端就近匹配
package replication

// Role 会话中“谁是权威端”的唯一查询点。会话期间不变，不做权威移交
type Role struct {
	HostID string
	SelfID string
}

// IsAuthority 本端是否为权威端
func (r Role) IsAuthority() bool {
	return r.SelfID != "" && r.SelfID == r.HostID
}
