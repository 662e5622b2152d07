package middlewarectx

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// TrustedProxies сети прокси, заголовкам которых можно верить.
// Нулевое значение и nil не доверяют никому.
type TrustedProxies struct {
	nets []*net.IPNet
}

// ParseTrustedProxies разбирает список адресов и CIDR-сетей.
func ParseTrustedProxies(entries []string) (*TrustedProxies, error) {
	const op = "middlewarectx.ParseTrustedProxies"

	tp := &TrustedProxies{}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.Contains(e, "/") {
			ip := net.ParseIP(e)
			if ip == nil {
				return nil, fmt.Errorf("%s: invalid proxy address %q", op, e)
			}
			bits := 128
			if v4 := ip.To4(); v4 != nil {
				ip, bits = v4, 32
			}
			tp.nets = append(tp.nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(e)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		tp.nets = append(tp.nets, n)
	}
	return tp, nil
}

// Contains сообщает, принадлежит ли ip доверенному прокси.
func (t *TrustedProxies) Contains(ip net.IP) bool {
	if t == nil || ip == nil {
		return false
	}
	for _, n := range t.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// RealIP подставляет в RemoteAddr адрес клиента из X-Forwarded-For или
// X-Real-IP. Заголовки читаются только у запросов от доверенного прокси,
// иначе RemoteAddr остаётся адресом соединения.
func RealIP(t *TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ip := t.clientAddr(r); ip != "" {
				r.RemoteAddr = ip
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientAddr идёт по X-Forwarded-For справа налево и возвращает первый адрес,
// который не является доверенным прокси. Пустая строка: RemoteAddr не меняется.
func (t *TrustedProxies) clientAddr(r *http.Request) string {
	if !t.Contains(net.ParseIP(hostOf(r.RemoteAddr))) {
		return ""
	}

	if values := r.Header.Values("X-Forwarded-For"); len(values) > 0 {
		hops := strings.Split(strings.Join(values, ","), ",")
		var last string
		for i := len(hops) - 1; i >= 0; i-- {
			ip := net.ParseIP(strings.TrimSpace(hops[i]))
			if ip == nil {
				return last
			}
			last = ip.String()
			if !t.Contains(ip) {
				return last
			}
		}
		return last
	}

	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}
	return ""
}
