package swiftftr

import (
	"context"
	"net"
)

// TraceClassified runs a batched trace and segment-classifies it in
// one call: the convenience most callers want (spec §4.10's
// "Outputs" section describes exactly this composition of §4.5 +
// §4.9 + the classifier).
func (e *Engine) TraceClassified(ctx context.Context, host string) (ClassifiedTrace, error) {
	trace, err := e.Trace(ctx, host)
	if err != nil {
		return ClassifiedTrace{}, err
	}
	return e.classify(ctx, trace), nil
}

// classify resolves ASNs and (optionally) hostnames for trace's hops
// and the client/destination, then runs the segment classifier.
func (e *Engine) classify(ctx context.Context, trace TraceResult) ClassifiedTrace {
	publicIP, hasPublicIP := e.resolvePublicIP(ctx)

	ips := make([]net.IP, 0, len(trace.Hops)+2)
	for _, h := range trace.Hops {
		if h.IP != nil {
			ips = append(ips, h.IP)
		}
	}
	if trace.DestinationIP != nil {
		ips = append(ips, trace.DestinationIP)
	}
	if hasPublicIP {
		ips = append(ips, publicIP)
	}

	asnByIP := e.asnResolver.Resolve(ctx, ips, e.cfg.MaxWait)
	hostnames := e.lookupHostnames(ctx, ips)

	var vpn *VPNContext
	if e.cfg.Interface != "" {
		vpn = &VPNContext{TraceInterface: e.cfg.Interface}
	}

	return ClassifyTrace(trace, publicIP, hasPublicIP, asnByIP, hostnames, vpn)
}
