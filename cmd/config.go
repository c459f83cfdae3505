package cmd

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"go.dedis.ch/mpcsum/peer/impl/mpc"
	"go.dedis.ch/mpcsum/transport/tcp"
	"go.dedis.ch/mpcsum/types"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

const defaultHost = "127.0.0.1"

// ErrConfig is returned for any invalid configuration. The process exits with
// code 1 on it.
var ErrConfig = xerrors.New("invalid configuration")

// Config is the configuration of a party process. It is read from a yaml file
// and overridden by the command line.
type Config struct {
	PartyID types.PartyID `yaml:"party_id"`
	// Parties lists every party of the run as "<id>:<port>", this one included.
	Parties []string `yaml:"parties"`
	// Host is the host every party listens on. Default: 127.0.0.1
	Host string `yaml:"host"`

	// Threshold defaults to (n-1)/2 when unset.
	Threshold    *int          `yaml:"threshold"`
	Prime        uint64        `yaml:"prime"`
	Secret       *uint64       `yaml:"secret"`
	RoundTimeout time.Duration `yaml:"round_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	Backoff tcp.BackoffPolicy `yaml:"backoff"`

	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	Interactive bool   `yaml:"interactive"`
}

// DefaultConfig returns the configuration used for unset values.
func DefaultConfig() Config {
	return Config{
		Host:         defaultHost,
		Prime:        mpc.DefaultPrime,
		RoundTimeout: mpc.DefaultRoundTimeout,
		WriteTimeout: mpc.DefaultWriteTimeout,
		Backoff:      tcp.DefaultBackoffPolicy(),
		LogLevel:     "info",
	}
}

// LoadConfig reads the yaml file at path over the default configuration.
func LoadConfig(path string) (Config, error) {
	conf := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return conf, xerrors.Errorf("failed to read config: %v", err)
	}

	err = yaml.Unmarshal(data, &conf)
	if err != nil {
		return conf, xerrors.Errorf("failed to parse %s: %v: %w", path, err, ErrConfig)
	}

	return conf, nil
}

// Endpoints is the resolved view of the parties of a run.
type Endpoints struct {
	Self  string
	Peers map[types.PartyID]string
}

// ParseParty reads a "<id>:<port>" entry.
func ParseParty(entry string) (types.PartyID, uint16, error) {
	idStr, portStr, ok := strings.Cut(strings.TrimSpace(entry), ":")
	if !ok {
		return 0, 0, xerrors.Errorf("party %q is not <id>:<port>: %w", entry, ErrConfig)
	}

	id, err := types.ParsePartyID(idStr)
	if err != nil {
		return 0, 0, xerrors.Errorf("party %q: %v: %w", entry, err, ErrConfig)
	}

	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil || port == 0 {
		return 0, 0, xerrors.Errorf("party %q: invalid port: %w", entry, ErrConfig)
	}

	return id, uint16(port), nil
}

// Resolve checks the list of parties and splits it between this party and its
// peers. The current id must be listed, ids and ports must be distinct.
func (c Config) Resolve() (Endpoints, error) {
	if c.PartyID == 0 {
		return Endpoints{}, xerrors.Errorf("party id must not be 0: %w", ErrConfig)
	}
	if len(c.Parties) == 0 {
		return Endpoints{}, xerrors.Errorf("no parties given: %w", ErrConfig)
	}

	host := c.Host
	if host == "" {
		host = defaultHost
	}

	res := Endpoints{Peers: make(map[types.PartyID]string, len(c.Parties)-1)}
	ports := make(map[uint16]types.PartyID, len(c.Parties))

	for _, entry := range c.Parties {
		id, port, err := ParseParty(entry)
		if err != nil {
			return Endpoints{}, err
		}

		if other, ok := ports[port]; ok {
			return Endpoints{}, xerrors.Errorf("parties %d and %d share port %d: %w", other, id, port, ErrConfig)
		}
		ports[port] = id

		addr := net.JoinHostPort(host, strconv.Itoa(int(port)))

		if id == c.PartyID {
			if res.Self != "" {
				return Endpoints{}, xerrors.Errorf("party %d listed twice: %w", id, ErrConfig)
			}
			res.Self = addr
			continue
		}

		_, ok := res.Peers[id]
		if ok {
			return Endpoints{}, xerrors.Errorf("party %d listed twice: %w", id, ErrConfig)
		}
		res.Peers[id] = addr
	}

	if res.Self == "" {
		return Endpoints{}, xerrors.Errorf("party %d is not among the listed parties: %w", c.PartyID, ErrConfig)
	}

	return res, nil
}

// GetThreshold returns the configured threshold or the largest one that
// tolerates a minority of missing parties.
func (c Config) GetThreshold() int {
	if c.Threshold != nil {
		return *c.Threshold
	}
	return (len(c.Parties) - 1) / 2
}
