package bridge

import (
	j "encoding/json"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AGPFMiner/poolbridge/clients"
	"github.com/AGPFMiner/poolbridge/mining"
	"github.com/AGPFMiner/poolbridge/statistics"
	"github.com/AGPFMiner/poolbridge/types"

	"go.uber.org/zap/zapcore"

	"go.uber.org/zap"
)

var atom = zap.NewAtomicLevel()
var logger *zap.Logger

func selectZapLevel(loglevel string) zapcore.Level {
	var level zapcore.Level
	switch loglevel {
	case "debug":
		level = zap.DebugLevel
	case "info":
		level = zap.InfoLevel
	case "error":
		level = zap.ErrorLevel
	default:
		level = zap.InfoLevel
	}
	return level
}
func initLogger(loglevel string) *zap.Logger {
	level := selectZapLevel(loglevel)
	encoderCfg := zap.NewProductionEncoderConfig()
	logger = zap.New(zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(os.Stdout),
		atom,
	))
	defer logger.Sync()
	atom.SetLevel(level)
	return logger
}

const pollDelay = 100 * time.Millisecond

//Bridge does everything between the local search process and the pool
type Bridge struct {
	Pool types.Pool

	ListenAddr      string
	RefreshInterval int64

	LogLevel string

	ctx      *mining.MiningContext
	searcher mining.Searcher

	accepted, proposed, submitted, rejected int32
	lastSubmit                              int64
	connState                               int32
	submitRate                              statistics.Rate

	log     *zap.Logger
	srvMu   sync.Mutex
	srv     *http.Server
	stopSig chan bool
	errc    chan error
}

//BridgeMain wires the context, starts the supervised loops and serves the
// inbound API. A configuration error returns before anything is started.
func (b *Bridge) BridgeMain() error {
	log := initLogger(b.LogLevel)
	if err := b.setup(clients.NewPoolClient(b.Pool.URL), log); err != nil {
		return err
	}
	b.StartLoops()
	go b.supervise()

	srv := &http.Server{Addr: b.ListenAddr, Handler: b.router()}
	b.srvMu.Lock()
	b.srv = srv
	b.srvMu.Unlock()
	log.Info("server listening", zap.String("addr", b.ListenAddr))
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// setup builds the shared context from the configured pool identity. The
// search library is an external collaborator; when none is registered for
// the configured variant the pairing worker stays off and the
// accept/refresh/submit surface still serves.
func (b *Bridge) setup(client clients.PoolCaller, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, err := mining.NewMiningContext(mining.Args{Pool: b.Pool, Client: client, Logger: log})
	if err != nil {
		return err
	}
	b.ctx = ctx
	b.log = log
	if searcher, err := mining.SearcherFor(ctx.SearchParams.Algo); err != nil {
		log.Warn("no searcher registered, pairing worker disabled",
			zap.String("algo", ctx.SearchParams.Algo.String()))
	} else {
		b.searcher = searcher
	}
	atomic.StoreInt32(&b.connState, int32(types.NotReady))
	return nil
}

//StartLoops launches the refresh, worker and submit loops
func (b *Bridge) StartLoops() {
	b.stopSig = make(chan bool)
	b.errc = make(chan error, 16)
	go b.refreshLoop()
	if b.searcher != nil {
		go b.workerLoop()
	}
	go b.submitLoop()
}

//Stop halts the loops and the inbound server
func (b *Bridge) Stop() {
	if b.stopSig != nil {
		close(b.stopSig)
	}
	b.srvMu.Lock()
	if b.srv != nil {
		b.srv.Close()
	}
	b.srvMu.Unlock()
}

//Errors exposes loop failures to a monitoring collaborator
func (b *Bridge) Errors() <-chan error {
	return b.errc
}

//Reload applies the reloadable part of the configuration; identity and
// key changes need a restart
func (b *Bridge) Reload() {
	atom.SetLevel(selectZapLevel(b.LogLevel))
	b.log.Info("log level reloaded", zap.String("level", b.LogLevel))
}

func (b *Bridge) report(err error) {
	select {
	case b.errc <- err:
	default:
	}
}

// refreshLoop keeps the round snapshot current. A failed refresh leaves
// the snapshot stale and the loop running.
func (b *Bridge) refreshLoop() {
	interval := time.Duration(b.RefreshInterval) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := b.ctx.RefreshParams(); err != nil {
			atomic.StoreInt32(&b.connState, int32(types.Sick))
			b.log.Error("refresh mining params", zap.Error(err))
			b.report(err)
		} else {
			atomic.StoreInt32(&b.connState, int32(types.Alive))
		}
		select {
		case <-ticker.C:
		case <-b.stopSig:
			return
		}
	}
}

// workerLoop pairs queued objects with the current snapshot and keeps the
// hashes that meet the round's proof-of-work difficulty.
func (b *Bridge) workerLoop() {
	for {
		select {
		case <-b.stopSig:
			return
		default:
		}
		params, ok := b.ctx.CurrentParams()
		if !ok {
			time.Sleep(pollDelay)
			continue
		}
		obj, ok := b.ctx.PopObject()
		if !ok {
			time.Sleep(pollDelay)
			continue
		}
		hashes, err := b.searcher.Search(b.ctx.SearchParams, params.PreHash, params.ParentHash, obj.Obj)
		if err != nil {
			atomic.AddInt32(&b.rejected, 1)
			b.log.Error("search failed", zap.Uint64("obj_id", obj.ObjID), zap.Error(err))
			b.report(err)
			continue
		}
		for _, hash := range hashes {
			if !mining.MeetsDifficulty(hash, params.PowDifficulty) {
				continue
			}
			b.ctx.PushProposal(types.MiningProposal{
				Params: params,
				Hash:   hash,
				ObjID:  obj.ObjID,
				Obj:    obj.Obj,
			})
			atomic.AddInt32(&b.proposed, 1)
		}
	}
}

// submitLoop drains the outbound queue one proposal at a time. A failed
// push drops that proposal, requeueing is the caller's policy.
func (b *Bridge) submitLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-b.stopSig:
			return
		case <-ticker.C:
			b.submitRate.Tick()
		default:
		}
		proposal, ok := b.ctx.PopProposal()
		if !ok {
			time.Sleep(pollDelay)
			continue
		}
		if err := b.ctx.PushToNode(proposal); err != nil {
			atomic.AddInt32(&b.rejected, 1)
			b.log.Error("push proposal", zap.Uint64("obj_id", proposal.ObjID), zap.Error(err))
			b.report(err)
			continue
		}
		atomic.AddInt32(&b.submitted, 1)
		atomic.StoreInt64(&b.lastSubmit, time.Now().Unix())
		b.submitRate.Add(1)
	}
}

// supervise logs whatever the loops report. Termination of a loop is
// visible here rather than silently dropped.
func (b *Bridge) supervise() {
	for {
		select {
		case err := <-b.errc:
			b.log.Warn("bridge loop error", zap.Error(err))
		case <-b.stopSig:
			return
		}
	}
}

//Stats assembles the current bridge status
func (b *Bridge) Stats() types.BridgeStates {
	return types.BridgeStates{
		Status:        types.PoolConnectionStates(atomic.LoadInt32(&b.connState)),
		PoolAddr:      b.Pool.URL,
		PoolID:        b.Pool.PoolID,
		MemberID:      b.Pool.MemberID,
		Algo:          b.Pool.Algo,
		Accepted:      atomic.LoadInt32(&b.accepted),
		Proposed:      atomic.LoadInt32(&b.proposed),
		Submitted:     atomic.LoadInt32(&b.submitted),
		Rejected:      atomic.LoadInt32(&b.rejected),
		LastSubmitted: atomic.LoadInt64(&b.lastSubmit),
		InQueue:       b.ctx.InQueueLen(),
		OutQueue:      b.ctx.OutQueueLen(),
		SubmitRate:    b.submitRate.PerSecond(60),
		Time:          time.Now().Unix(),
	}
}

type BridgeRPCArgs struct {
	Who string
}

type BridgeRPCReply struct {
	StatsInfo string
}

func (b *Bridge) GetBridgeStats(r *http.Request, args *BridgeRPCArgs, reply *BridgeRPCReply) error {
	res, _ := j.Marshal(b.Stats())
	reply.StatsInfo = string(res)
	return nil
}
