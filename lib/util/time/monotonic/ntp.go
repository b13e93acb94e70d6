package monotonic

import (
	"errors"
	"time"

	"github.com/beevik/ntp"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
)

var log = logger.GetGoI2PLogger()

var ERR_NO_NTP_RESPONSE = errors.New("no usable ntp response")

// QueryFunc matches ntp.QueryWithOptions.
type QueryFunc func(host string, options ntp.QueryOptions) (*ntp.Response, error)

const (
	maxRTT            = 2 * time.Second
	maxClockOffset    = 10 * time.Minute
	maxRootDispersion = time.Second
	maxRootDelay      = time.Second
)

// Sync queries servers in order and adopts the offset of the first response
// that passes validation. The previous offset is kept when none does.
func (c *Clock) Sync(query QueryFunc, servers []string, timeout time.Duration) error {
	if query == nil {
		query = ntp.QueryWithOptions
	}
	for _, server := range servers {
		resp, err := query(server, ntp.QueryOptions{Timeout: timeout})
		if err != nil {
			log.WithError(err).WithField("server", server).Debug("ntp_query_failed")
			continue
		}
		if err := validateResponse(resp); err != nil {
			log.WithError(err).WithField("server", server).Debug("ntp_response_rejected")
			continue
		}
		c.SetOffset(resp.ClockOffset)
		log.WithFields(logger.Fields{
			"at":     "monotonic.Clock.Sync",
			"server": server,
			"offset": resp.ClockOffset.String(),
		}).Info("clock_synchronised")
		return nil
	}
	return oops.Wrapf(ERR_NO_NTP_RESPONSE, "tried %d servers", len(servers))
}

func validateResponse(r *ntp.Response) error {
	switch {
	case r.Leap == ntp.LeapNotInSync:
		return oops.Errorf("server clock not synchronised")
	case r.Stratum == 0 || r.Stratum > 15:
		return oops.Errorf("stratum %d out of range", r.Stratum)
	case r.RTT < 0 || r.RTT > maxRTT:
		return oops.Errorf("round trip %v out of bounds", r.RTT)
	case absDuration(r.ClockOffset) > maxClockOffset:
		return oops.Errorf("offset %v out of bounds", r.ClockOffset)
	case r.Time.IsZero():
		return oops.Errorf("zero time")
	case r.RootDispersion > maxRootDispersion || r.RootDelay > maxRootDelay:
		return oops.Errorf("root dispersion %v or delay %v too high", r.RootDispersion, r.RootDelay)
	}
	return nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
