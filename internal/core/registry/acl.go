package registry

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/dep2p/go-connp/pkg/types"
)

// rule 单条 ACL 规则，port 为 0 表示任意端口
type rule struct {
	prefix netip.Prefix
	port   uint16
}

func (r rule) match(dest types.Destination) bool {
	if r.port != 0 && r.port != dest.Port() {
		return false
	}
	return r.prefix.Contains(dest.Addr())
}

func (r rule) String() string {
	port := "*"
	if r.port != 0 {
		port = strconv.Itoa(int(r.port))
	}
	return r.prefix.String() + ":" + port
}

var anyIPv4 = netip.PrefixFrom(netip.IPv4Unspecified(), 0)

// parseRule 解析规则
//
// 支持 ip、ip:port、cidr、cidr:port、*:port。
func parseRule(s string) (rule, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return rule{}, fmt.Errorf("%w: empty", ErrInvalidRule)
	}

	host, portStr := s, ""
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		host, portStr = s[:i], s[i+1:]
	}

	var r rule
	switch {
	case host == "*":
		r.prefix = anyIPv4
	case strings.Contains(host, "/"):
		p, err := netip.ParsePrefix(host)
		if err != nil || !p.Addr().Is4() {
			return rule{}, fmt.Errorf("%w: %q", ErrInvalidRule, s)
		}
		r.prefix = p.Masked()
	default:
		a, err := netip.ParseAddr(host)
		if err != nil || !a.Is4() {
			return rule{}, fmt.Errorf("%w: %q", ErrInvalidRule, s)
		}
		r.prefix = netip.PrefixFrom(a, 32)
	}

	if portStr != "" && portStr != "*" {
		port, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil || port == 0 {
			return rule{}, fmt.Errorf("%w: bad port in %q", ErrInvalidRule, s)
		}
		r.port = uint16(port)
	}
	if host == "*" && r.port == 0 {
		return rule{}, fmt.Errorf("%w: %q needs a port, use 0.0.0.0/0", ErrInvalidRule, s)
	}
	return r, nil
}

// acl 允许/禁止规则集合
type acl struct {
	allow []rule
	deny  []rule
}

func newACL(allow, deny []string) (acl, error) {
	var a acl
	for _, s := range allow {
		r, err := parseRule(s)
		if err != nil {
			return acl{}, err
		}
		a.allow = append(a.allow, r)
	}
	for _, s := range deny {
		r, err := parseRule(s)
		if err != nil {
			return acl{}, err
		}
		a.deny = append(a.deny, r)
	}
	return a, nil
}

// permits Deny 优先
func (a acl) permits(dest types.Destination) bool {
	for _, r := range a.deny {
		if r.match(dest) {
			return false
		}
	}
	for _, r := range a.allow {
		if r.match(dest) {
			return true
		}
	}
	return false
}
