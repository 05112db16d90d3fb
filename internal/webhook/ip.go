package webhook

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// TelegramCIDRs are the subnets Telegram delivers webhook requests from.
var TelegramCIDRs = []string{"149.154.160.0/20", "91.108.4.0/22"}

// AllowList is a set of subnets parsed once at startup.
type AllowList []netip.Prefix

func ParseAllowList(cidrs []string) (AllowList, error) {
	list := make(AllowList, 0, len(cidrs))
	for _, cidr := range cidrs {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid subnet %q: %w", cidr, err)
		}
		list = append(list, prefix.Masked())
	}
	return list, nil
}

// Contains reports whether ip falls into one of the subnets.
func (a AllowList) Contains(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range a {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// clientIP is the TCP peer. X-Forwarded-For is honoured only when the peer
// is a trusted proxy, and then only the right-most hop that proxy appended;
// anything to its left is client-supplied.
func clientIP(r *http.Request, trusted AllowList) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	if !trusted.Contains(peer) {
		return peer
	}

	forwarded := strings.Join(r.Header.Values("X-Forwarded-For"), ",")
	if forwarded == "" {
		return peer
	}
	hops := strings.Split(forwarded, ",")
	if last := strings.TrimSpace(hops[len(hops)-1]); last != "" {
		return last
	}
	return peer
}
