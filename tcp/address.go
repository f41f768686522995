package tcp

import (
	"net"

	"github.com/pkg/errors"
)

// defaultAddressSelector is the built-in AddressSelector, adapted from the
// teacher's lib/utils.go findLocalIP: prefer an interface in the same /24
// as the remote address (or whose /24 contains it), and otherwise fall
// back to the first non-loopback IPv4 address. Real routing-table lookups
// are outside the connection engine's scope; this is a reasonable default
// for callers that don't supply their own AddressSelector.
type defaultAddressSelector struct{}

// DefaultAddressSelector returns the engine's built-in AddressSelector.
func DefaultAddressSelector() AddressSelector { return defaultAddressSelector{} }

func (defaultAddressSelector) SelectSourceAddr(remote net.IP) (net.IP, error) {
	if remote == nil {
		return nil, errors.Wrap(ErrNotConfigured, "selecting source address: remote address is nil")
	}

	remoteNet := &net.IPNet{IP: remote, Mask: net.CIDRMask(24, 32)}

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, errors.Wrap(ErrNotConfigured, "listing network interfaces: "+err.Error())
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipNet.IP.To4()
			if ip == nil {
				continue
			}
			localNet := &net.IPNet{IP: ip, Mask: net.CIDRMask(24, 32)}
			if localNet.Contains(remote) || remoteNet.Contains(ip) {
				return ip, nil
			}
		}
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if ip := ipNet.IP.To4(); ip != nil {
				return ip, nil
			}
		}
	}

	return nil, errors.Wrap(ErrNotConfigured, "no suitable local address found")
}
