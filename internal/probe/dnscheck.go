package probe

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"
)

// DNS classes reported by Diagnose.
const (
	DNSResolves       = "RESOLVES"
	DNSNoARecord      = "NO_A_RECORD"
	DNSNXDomain       = "NXDOMAIN"
	DNSServfailOrTime = "SERVFAIL_or_TIMEOUT"
	DNSInvalidName    = "INVALID_NAME"
)

type DNSStatus struct {
	Host          string
	IPs           []net.IP
	Nameservers   []string
	Class         string
	ResolverError string
}

var dnsTimeout = 3 * time.Second

// Diagnose classifies the source host's DNS state. It is only used to enrich
// the log line when the availability probe fails.
func Diagnose(ctx context.Context, rawURL string) DNSStatus {
	s := DNSStatus{Host: hostOf(rawURL)}
	if s.Host == "" || strings.Contains(s.Host, "://") {
		s.Class = DNSInvalidName
		return s
	}
	if ip := net.ParseIP(s.Host); ip != nil {
		s.IPs = []net.IP{ip}
		s.Class = DNSResolves
		return s
	}

	ctx, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()
	r := &net.Resolver{}

	ips, err := r.LookupIP(ctx, "ip", s.Host)
	switch {
	case err == nil && len(ips) > 0:
		s.IPs = ips
		s.Class = DNSResolves
		return s
	case err != nil:
		s.ResolverError = err.Error()
		var de *net.DNSError
		if errors.As(err, &de) && de.IsNotFound {
			s.Class = DNSNXDomain
		} else {
			s.Class = DNSServfailOrTime
		}
	default:
		s.Class = DNSNXDomain
	}

	if ns, err := r.LookupNS(ctx, s.Host); err == nil && len(ns) > 0 {
		for _, n := range ns {
			s.Nameservers = append(s.Nameservers, strings.TrimSuffix(n.Host, "."))
		}
		if s.Class == DNSNXDomain {
			s.Class = DNSNoARecord
		}
	}
	return s
}

func hostOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Hostname() == "" {
		return strings.TrimSpace(raw)
	}
	return u.Hostname()
}
