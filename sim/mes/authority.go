package mes

import (
	"github.com/sirupsen/logrus"

	"github.com/traysim/traysim/sim"
)

// RemoteAuthority is the sim.RoutingAuthority backed by an MES.
type RemoteAuthority struct {
	client *CorrelationClient
}

// NewRemoteAuthority wraps client.
func NewRemoteAuthority(client *CorrelationClient) *RemoteAuthority {
	if client == nil {
		panic("NewRemoteAuthority: client must not be nil")
	}
	return &RemoteAuthority{client: client}
}

// RequestAction sends an action query.
func (a *RemoteAuthority) RequestAction(station sim.StationID, tray sim.TrayID) *sim.Signal[sim.Decision] {
	return a.request(MsgActionQuery, station, tray)
}

// RequestRouting sends a routing ("done") query.
func (a *RemoteAuthority) RequestRouting(station sim.StationID, tray sim.TrayID) *sim.Signal[sim.Decision] {
	return a.request(MsgActionDoneQuery, station, tray)
}

// Client returns the underlying correlation client.
func (a *RemoteAuthority) Client() *CorrelationClient {
	return a.client
}

func (a *RemoteAuthority) request(msgType uint32, station sim.StationID, tray sim.TrayID) *sim.Signal[sim.Decision] {
	sig, err := a.client.Request(msgType, station, tray)
	if err != nil {
		logrus.WithError(err).Error("mes: request refused")
	}
	return sig
}
