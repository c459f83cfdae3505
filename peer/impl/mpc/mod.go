package mpc

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.dedis.ch/mpcsum/peer"
	"go.dedis.ch/mpcsum/transport"
	"go.dedis.ch/mpcsum/types"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

const (
	DefaultRoundTimeout = 30 * time.Second
	DefaultWriteTimeout = 5 * time.Second
)

var (
	// ErrZeroInverse is returned when inverting the zero element.
	ErrZeroInverse = xerrors.New("zero has no inverse")

	// ErrZeroPoint is returned when a party would be evaluated at x = 0.
	ErrZeroPoint = xerrors.New("evaluation point is zero")

	// ErrDuplicateID is returned when two evaluation points coincide.
	ErrDuplicateID = xerrors.New("duplicate party id")

	// ErrDuplicateX is returned when interpolating over a repeated x.
	ErrDuplicateX = xerrors.New("duplicate x coordinate")

	// ErrInsufficientPoints is returned when fewer than t+1 points are
	// available for a reconstruction.
	ErrInsufficientPoints = xerrors.New("not enough points to reconstruct")

	// ErrRoundIncomplete is returned when a round timed out before every
	// party contributed.
	ErrRoundIncomplete = xerrors.New("round incomplete")

	// ErrUnknownParty is returned for records from a party outside the run.
	ErrUnknownParty = xerrors.New("unknown party")
)

// Module holds the whole state of a party and runs the summation protocol.
//
// - implements peer.MPC
type Module struct {
	conf  *peer.Configuration
	field *Field

	secret  Element
	parties []types.PartyID
	byAddr  map[string]types.PartyID

	shares     *ShareStore
	sums       *SumStore
	shareRound *round
	sumRound   *round
	handshakes *SafeHandshakes

	// sharing and summing serialize each operation from its computation to
	// its last send, so the latest record a peer keeps is the latest computed.
	sharing sync.Mutex
	summing sync.Mutex

	sync.RWMutex
	ctx       context.Context
	result    Element
	hasResult bool
}

// NewModule validates the configuration, draws the secret if none is given
// and registers the command callbacks.
func NewModule(conf *peer.Configuration) (*Module, error) {
	if conf.Prime == 0 {
		conf.Prime = DefaultPrime
	}
	if conf.RoundTimeout == 0 {
		conf.RoundTimeout = DefaultRoundTimeout
	}
	if conf.WriteTimeout == 0 {
		conf.WriteTimeout = DefaultWriteTimeout
	}

	field, err := NewField(conf.Prime)
	if err != nil {
		return nil, err
	}

	parties, byAddr, err := checkParties(field, conf)
	if err != nil {
		return nil, err
	}

	var secret Element
	if conf.Secret != nil {
		secret, err = field.Element(*conf.Secret)
	} else {
		secret, err = field.GenerateSecret()
	}
	if err != nil {
		return nil, xerrors.Errorf("secret: %v", err)
	}

	m := &Module{
		conf:       conf,
		field:      field,
		secret:     secret,
		parties:    parties,
		byAddr:     byAddr,
		shares:     NewShareStore(),
		sums:       NewSumStore(),
		shareRound: newRound("shares", AwaitingShares, parties),
		sumRound:   newRound("sums", AwaitingSums, parties),
		handshakes: NewSafeHandshakes(),
		ctx:        context.Background(),
	}

	// message registery
	reg := conf.MessageRegistry
	reg.RegisterMessageCallback(&types.HelloMessage{}, m.ProcessHelloMsg)
	reg.RegisterMessageCallback(&types.CommunicateSharesMessage{}, m.ProcessCommunicateSharesMsg)
	reg.RegisterMessageCallback(&types.ReceiveShareMessage{}, m.ProcessReceiveShareMsg)
	reg.RegisterMessageCallback(&types.SumAndDistributeMessage{}, m.ProcessSumAndDistributeMsg)
	reg.RegisterMessageCallback(&types.ReceiveSumMessage{}, m.ProcessReceiveSumMsg)
	reg.RegisterMessageCallback(&types.GiveResultMessage{}, m.ProcessGiveResultMsg)
	reg.RegisterMessageCallback(&types.ShowSharesMessage{}, m.ProcessShowSharesMsg)
	reg.RegisterMessageCallback(&types.ShowSumsMessage{}, m.ProcessShowSumsMsg)

	return m, nil
}

// checkParties makes sure party ids are nonzero and distinct in the field,
// and that the threshold allows a reconstruction.
func checkParties(field *Field, conf *peer.Configuration) ([]types.PartyID, map[string]types.PartyID, error) {
	if conf.PartyID == 0 {
		return nil, nil, xerrors.Errorf("party id must not be 0")
	}
	if _, ok := conf.Peers[conf.PartyID]; ok {
		return nil, nil, xerrors.Errorf("party %d is listed among its own peers", conf.PartyID)
	}

	byAddr := make(map[string]types.PartyID, len(conf.Peers))
	for id, addr := range conf.Peers {
		if other, ok := byAddr[addr]; ok {
			return nil, nil, xerrors.Errorf("parties %d and %d share address %s", other, id, addr)
		}
		byAddr[addr] = id
	}

	parties := conf.AllParties()
	sort.Slice(parties, func(i, j int) bool { return parties[i] < parties[j] })

	_, err := field.evaluationPoints(parties)
	if err != nil {
		return nil, nil, err
	}

	if conf.Threshold < 0 || conf.Threshold >= len(parties) {
		return nil, nil, xerrors.Errorf("threshold %d must be in [0, %d)", conf.Threshold, len(parties))
	}

	return parties, byAddr, nil
}

// SetContext sets the context the command callbacks run under.
func (m *Module) SetContext(ctx context.Context) {
	m.Lock()
	defer m.Unlock()
	m.ctx = ctx
}

func (m *Module) baseCtx() context.Context {
	m.RLock()
	defer m.RUnlock()
	return m.ctx
}

/** Feature Functions **/

// CommunicateShares implements peer.MPC
func (m *Module) CommunicateShares(ctx context.Context) error {
	m.sharing.Lock()
	defer m.sharing.Unlock()

	shares, err := m.field.Share(Element(m.GetSecret()), m.parties, m.conf.Threshold)
	if err != nil {
		return err
	}

	self := m.conf.PartyID
	own := shares[self]
	m.storeShare(types.ShareRecord{Origin: self, X: uint64(own.X), Y: uint64(own.Y)})

	log.Info().Msgf("party %d: sharing secret with %d peers", self, len(m.conf.Peers))

	msgs := make(map[types.PartyID]types.Message, len(m.conf.Peers))
	for id := range m.conf.Peers {
		share := shares[id]
		msgs[id] = &types.ReceiveShareMessage{Sender: self, X: uint64(share.X), Y: uint64(share.Y)}
	}
	return m.sendAll(ctx, msgs)
}

// SumAndDistribute implements peer.MPC
func (m *Module) SumAndDistribute(ctx context.Context) (uint64, error) {
	err := m.shareRound.wait(ctx, m.conf.RoundTimeout)
	if err != nil {
		return 0, err
	}

	m.summing.Lock()
	defer m.summing.Unlock()

	var sum Element
	for _, rec := range m.shares.latest() {
		sum = m.field.Add(sum, Element(rec.Y))
	}

	self := m.conf.PartyID
	m.storeSum(types.SumRecord{Origin: self, Sum: uint64(sum)})

	log.Info().Msgf("party %d: partial sum computed, distributing", self)

	msgs := make(map[types.PartyID]types.Message, len(m.conf.Peers))
	for id := range m.conf.Peers {
		msgs[id] = &types.ReceiveSumMessage{Sender: self, Sum: uint64(sum)}
	}
	return uint64(sum), m.sendAll(ctx, msgs)
}

// GiveResult implements peer.MPC. If some partial sums are still missing when
// the round times out, it goes on as long as t+1 of them arrived.
func (m *Module) GiveResult(ctx context.Context) (uint64, error) {
	err := m.sumRound.wait(ctx, m.conf.RoundTimeout)
	if err != nil {
		if m.sumRound.count() < m.conf.Threshold+1 {
			return 0, xerrors.Errorf("%v: %w", err, ErrInsufficientPoints)
		}
		log.Warn().Err(err).Msgf("party %d: reconstructing from a subset of the sums", m.conf.PartyID)
	}

	records := m.sums.latest()
	points := make([]Share, len(records))
	for i, rec := range records {
		points[i] = Share{X: m.field.FromUint64(uint64(rec.Origin)), Y: Element(rec.Sum)}
	}

	result, err := m.field.InterpolateThreshold(points, m.conf.Threshold)
	if err != nil {
		return 0, err
	}

	m.Lock()
	m.result = result
	m.hasResult = true
	m.Unlock()

	log.Info().Msgf("party %d: global sum is %s", m.conf.PartyID, result)
	return uint64(result), nil
}

// GetShares implements peer.MPC
func (m *Module) GetShares() []types.ShareRecord {
	return m.shares.getAll()
}

// GetSums implements peer.MPC
func (m *Module) GetSums() []types.SumRecord {
	return m.sums.getAll()
}

// GetResult implements peer.MPC
func (m *Module) GetResult() (uint64, bool) {
	m.RLock()
	defer m.RUnlock()
	return uint64(m.result), m.hasResult
}

// GetSecret implements peer.MPC
func (m *Module) GetSecret() uint64 {
	m.RLock()
	defer m.RUnlock()
	return uint64(m.secret)
}

// SetSecret implements peer.MPC. The new secret is used by the next
// CommunicateShares.
func (m *Module) SetSecret(n uint64) error {
	secret, err := m.field.Element(n)
	if err != nil {
		return xerrors.Errorf("secret: %w", err)
	}

	m.Lock()
	m.secret = secret
	m.Unlock()

	log.Info().Msgf("party %d: secret updated", m.conf.PartyID)
	return nil
}

// GetHandshakes returns the peers that greeted this party, by address.
func (m *Module) GetHandshakes() map[string]types.PartyID {
	return m.handshakes.getAll()
}

// ShareRoundState returns the state of the share round.
func (m *Module) ShareRoundState() RoundState {
	return m.shareRound.state()
}

// SumRoundState returns the state of the sum round.
func (m *Module) SumRoundState() RoundState {
	return m.sumRound.state()
}

/** Private Helper Functions **/

func (m *Module) storeShare(rec types.ShareRecord) {
	if m.shares.add(rec) {
		log.Warn().Msgf("party %d: share from %d received again, keeping the latest", m.conf.PartyID, rec.Origin)
	}
	m.shareRound.arrive(rec.Origin)
}

func (m *Module) storeSum(rec types.SumRecord) {
	if m.sums.add(rec) {
		log.Warn().Msgf("party %d: sum from %d received again, keeping the latest", m.conf.PartyID, rec.Origin)
	}
	m.sumRound.arrive(rec.Origin)
}

func (m *Module) isParty(id types.PartyID) bool {
	if id == m.conf.PartyID {
		return true
	}
	_, ok := m.conf.Peers[id]
	return ok
}

// sendAll sends every message to its party, one goroutine per party so an
// unreachable peer does not hold back the others. All messages are attempted,
// the error lists the parties that could not be reached.
func (m *Module) sendAll(ctx context.Context, msgs map[types.PartyID]types.Message) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var mu sync.Mutex
	failed := []types.PartyID{}
	var lastErr error

	var g errgroup.Group
	for id, msg := range msgs {
		id, msg := id, msg
		g.Go(func() error {
			err := m.send(m.conf.Peers[id], msg)
			if err != nil {
				log.Error().Err(err).Msgf("party %d: failed to send %s to %d", m.conf.PartyID, msg.Name(), id)
				mu.Lock()
				failed = append(failed, id)
				lastErr = err
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	if lastErr != nil {
		sort.Slice(failed, func(i, j int) bool { return failed[i] < failed[j] })
		names := make([]string, len(failed))
		for i, id := range failed {
			names[i] = id.String()
		}
		return xerrors.Errorf("not delivered to parties %s: %w", strings.Join(names, ", "), lastErr)
	}
	return nil
}

func (m *Module) send(dest string, msg types.Message) error {
	transpMsg, err := m.conf.MessageRegistry.MarshalMessage(msg)
	if err != nil {
		return err
	}
	header := transport.NewHeader(m.conf.Socket.GetAddress(), dest)
	pkt := transport.Packet{Header: &header, Msg: &transpMsg}
	return m.conf.Socket.Send(dest, pkt, m.conf.WriteTimeout)
}
