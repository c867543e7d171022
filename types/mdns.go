package types

import (
	"fmt"
	"strings"
	"sync"

	"github.com/grandcat/zeroconf"

	"stac-validator/types/config"
)

// MDNS announces the validation API on the local network.
type MDNS struct {
	sync.Mutex

	server       *zeroconf.Server
	DNSSDStatus  config.DNSSD
	stacVersions []string
	available    bool
}

func NewMDNS(_config config.Config) *MDNS {
	return &MDNS{
		DNSSDStatus:  _config.DNSSD,
		stacVersions: make([]string, 0),
		available:    false,
	}
}

func (m *MDNS) SetAvailable(available bool) {
	m.Lock()
	defer m.Unlock()

	m.available = available
}

func (m *MDNS) GetAvailable() bool {
	m.Lock()
	defer m.Unlock()

	return m.available
}

func (m *MDNS) SetStacVersions(versions []string) {
	m.Lock()
	defer m.Unlock()

	m.stacVersions = versions
}

func (m *MDNS) GetStacVersions() []string {
	m.Lock()
	defer m.Unlock()

	return m.stacVersions
}

func (m *MDNS) GetTXT() []string {
	m.Lock()
	defer m.Unlock()

	return []string{
		fmt.Sprintf("version=%s", m.DNSSDStatus.Version),
		fmt.Sprintf("available=%t", m.available),
		fmt.Sprintf("stac_versions=%s", strings.Join(m.stacVersions, ",")),
	}
}

func (m *MDNS) Advertise() error {
	txt := m.GetTXT()

	m.Lock()
	defer m.Unlock()

	config.GetLogger().Debugf(
		"Starting mDNS server %s with TXT %s",
		m.DNSSDStatus.ServiceName,
		txt,
	)

	server, err := zeroconf.Register(
		m.DNSSDStatus.ServiceName,
		strings.TrimSuffix(m.DNSSDStatus.ServiceType, "."),
		m.DNSSDStatus.ServiceDomain,
		m.DNSSDStatus.ServicePort,
		txt,
		nil,
	)
	if err != nil {
		return err
	}

	m.server = server
	return nil
}

func (m *MDNS) Shutdown() {
	m.Lock()
	defer m.Unlock()

	if m.server != nil {
		config.GetLogger().Debugf(
			"Shutting down mDNS server %s",
			m.DNSSDStatus.ServiceName,
		)
		m.server.Shutdown()
		m.server = nil
	}
}
