// Copyright 2026 OpenHallmark Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package issuance implements the gated issuance queue: an ordered
// backlog of pending asset definitions drained one entry at a time,
// but only after the queue has been frozen by the issuer, attested by
// an independent unlocker, and a mandatory cool-down has elapsed.
package issuance

import (
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"

	"github.com/openhallmark/hallmarkd/database"
	"github.com/openhallmark/hallmarkd/event"
	"github.com/openhallmark/hallmarkd/fault"
	"github.com/openhallmark/hallmarkd/roles"
)

const (
	QueueLockedEventType          event.EventType = "queue.locked"
	QueueUnlockerCheckedEventType event.EventType = "queue.unlocker_checked"
	QueueUnlockedEventType        event.EventType = "queue.unlocked"
	AssetIssuedEventType          event.EventType = "queue.asset_issued"
	DestinationDepositEventType   event.EventType = "queue.destination_deposit"
)

type QueueLockedEvent struct {
	Remaining int64
}

type QueueUnlockerCheckedEvent struct {
	Remaining   int64
	Destination roles.Principal
}

type QueueUnlockedEvent struct{}

type AssetIssuedEvent struct {
	AssetId       uint64
	OriginalValue string
}

type DestinationDepositEvent struct {
	From   roles.Principal
	Amount uint64
}

// LockState is the three-phase gate controlling when queued entries may
// be issued.
type LockState string

const (
	StateUnlocked LockState = "unlocked"
	StateLocked   LockState = "locked"
	StateChecked  LockState = "checked"
)

const (
	coolDownParam        = "policy.cool_down"
	interIssueDelayParam = "policy.inter_issue_delay"

	DefaultCoolDown        = 20 * time.Minute
	DefaultInterIssueDelay = time.Minute
)

// Minter creates assets inside the caller's transaction, normally
// backed by the asset registry.
type Minter interface {
	Mint(
		txn *gorm.DB,
		recipient roles.Principal,
		originalMetadata string,
	) (uint64, error)
}

type ControllerConfig struct {
	PromRegistry prometheus.Registerer
	Logger       *slog.Logger
	EventBus     *event.EventBus
	Database     *database.Database
	Roles        *roles.Registry
	Minter       Minter
	Clock        func() time.Time
	// Policy defaults; persisted admin overrides take precedence
	CoolDown        time.Duration
	InterIssueDelay time.Duration
}

// Controller coordinates the issuance queue and its lock gate. The
// issuer owns the queue; the unlocker independently attests the frozen
// configuration and is the only principal who can unwind it.
type Controller struct {
	config   ControllerConfig
	logger   *slog.Logger
	eventBus *event.EventBus
	db       *database.Database
	roles    *roles.Registry
	minter   Minter
	clock    func() time.Time
	metrics  struct {
		assetsIssued   prometheus.Counter
		queueRemaining prometheus.Gauge
		deposits       prometheus.Counter
	}
	coolDown        time.Duration
	interIssueDelay time.Duration
	policyMu        sync.RWMutex
	// Serializes state transitions; the database transaction alone
	// cannot order two concurrent IssueNext calls reading the same
	// cursor.
	mu sync.Mutex
}

func NewController(config ControllerConfig) (*Controller, error) {
	c := &Controller{
		config:   config,
		eventBus: config.EventBus,
		db:       config.Database,
		roles:    config.Roles,
		minter:   config.Minter,
		clock:    config.Clock,
	}
	if config.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		c.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		c.logger = config.Logger.With("component", "issuance")
	}
	if c.clock == nil {
		c.clock = time.Now
	}
	c.coolDown = config.CoolDown
	if c.coolDown <= 0 {
		c.coolDown = DefaultCoolDown
	}
	c.interIssueDelay = config.InterIssueDelay
	if c.interIssueDelay <= 0 {
		c.interIssueDelay = DefaultInterIssueDelay
	}
	if err := c.loadPolicy(); err != nil {
		return nil, err
	}
	promautoFactory := promauto.With(config.PromRegistry)
	c.metrics.assetsIssued = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "hallmarkd_queue_assets_issued_total",
			Help: "total assets issued from the queue",
		},
	)
	c.metrics.queueRemaining = promautoFactory.NewGauge(
		prometheus.GaugeOpts{
			Name: "hallmarkd_queue_remaining",
			Help: "queue entries not yet issued",
		},
	)
	c.metrics.deposits = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "hallmarkd_queue_deposits_total",
			Help: "total destination deposits received",
		},
	)
	if remaining, err := c.remaining(nil); err == nil {
		c.metrics.queueRemaining.Set(float64(remaining))
	}
	return c, nil
}

func (c *Controller) loadPolicy() error {
	if val, err := c.db.GetParam(coolDownParam, nil); err != nil {
		return err
	} else if val != "" {
		if secs, err := strconv.ParseInt(val, 10, 64); err == nil {
			c.coolDown = time.Duration(secs) * time.Second
		}
	}
	if val, err := c.db.GetParam(interIssueDelayParam, nil); err != nil {
		return err
	} else if val != "" {
		if secs, err := strconv.ParseInt(val, 10, 64); err == nil {
			c.interIssueDelay = time.Duration(secs) * time.Second
		}
	}
	return nil
}

func (c *Controller) remaining(txn *gorm.DB) (int64, error) {
	length, err := c.db.QueueLength(txn)
	if err != nil {
		return 0, err
	}
	state, err := c.db.GetLockState(txn)
	if err != nil {
		return 0, err
	}
	return length - state.Cursor, nil
}

// effectiveDestination resolves the mint recipient: an unset
// destination means the queue owner receives the assets.
func (c *Controller) effectiveDestination(
	state database.LockState,
) roles.Principal {
	if state.Destination != "" {
		return roles.Principal(state.Destination)
	}
	return c.roles.Principal(roles.RoleIssuer)
}

// AddEntries appends pending asset definitions. Issuer-only, Unlocked
// only, strictly additive. Invalidates any unlocker confirmation since
// the attested configuration changed.
func (c *Controller) AddEntries(
	caller roles.Principal,
	values []string,
) error {
	if err := c.roles.Require(roles.RoleIssuer, caller, "AddEntries"); err != nil {
		return err
	}
	if len(values) == 0 {
		return &fault.PreconditionError{Reason: "no entries given"}
	}
	for _, value := range values {
		if value == "" {
			return &fault.PreconditionError{Reason: "empty queue entry"}
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.Transaction(func(txn *gorm.DB) error {
		state, err := c.db.GetLockState(txn)
		if err != nil {
			return err
		}
		if LockState(state.State) != StateUnlocked {
			return &fault.StateError{
				Operation: "AddEntries",
				State:     state.State,
			}
		}
		if err := c.db.AddQueueEntries(values, txn); err != nil {
			return err
		}
		state.UnlockerConfirmed = false
		if err := c.db.SetLockState(state, txn); err != nil {
			return err
		}
		c.metrics.queueRemaining.Add(float64(len(values)))
		c.logger.Info(
			"queue entries added",
			"count", len(values),
		)
		return nil
	})
}

// ResetQueue destroys all entries and rewinds the cursor. Issuer-only,
// Unlocked only.
func (c *Controller) ResetQueue(caller roles.Principal) error {
	if err := c.roles.Require(roles.RoleIssuer, caller, "ResetQueue"); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.Transaction(func(txn *gorm.DB) error {
		state, err := c.db.GetLockState(txn)
		if err != nil {
			return err
		}
		if LockState(state.State) != StateUnlocked {
			return &fault.StateError{
				Operation: "ResetQueue",
				State:     state.State,
			}
		}
		if err := c.db.ClearQueue(txn); err != nil {
			return err
		}
		state.Cursor = 0
		state.UnlockerConfirmed = false
		if err := c.db.SetLockState(state, txn); err != nil {
			return err
		}
		c.metrics.queueRemaining.Set(0)
		c.logger.Info("queue reset")
		return nil
	})
}

// SetDestination points issuance at a recipient principal. Issuer-only,
// Unlocked only. Clears the unlocker confirmation and any prior
// control-proof deposit tally, which belonged to the old destination.
func (c *Controller) SetDestination(
	caller roles.Principal,
	destination roles.Principal,
) error {
	if err := c.roles.Require(roles.RoleIssuer, caller, "SetDestination"); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.Transaction(func(txn *gorm.DB) error {
		state, err := c.db.GetLockState(txn)
		if err != nil {
			return err
		}
		if LockState(state.State) != StateUnlocked {
			return &fault.StateError{
				Operation: "SetDestination",
				State:     state.State,
			}
		}
		state.Destination = string(destination)
		state.UnlockerConfirmed = false
		state.ConfirmedDeposit = 0
		return c.db.SetLockState(state, txn)
	})
}

// UnlockerConfirm records the unlocker's readiness attestation for the
// current queue configuration. Required before Lock; invalidated by any
// configuration change.
func (c *Controller) UnlockerConfirm(caller roles.Principal) error {
	if err := c.roles.Require(roles.RoleUnlocker, caller, "UnlockerConfirm"); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.Transaction(func(txn *gorm.DB) error {
		state, err := c.db.GetLockState(txn)
		if err != nil {
			return err
		}
		if LockState(state.State) != StateUnlocked {
			return &fault.StateError{
				Operation: "UnlockerConfirm",
				State:     state.State,
			}
		}
		length, err := c.db.QueueLength(txn)
		if err != nil {
			return err
		}
		if length-state.Cursor <= 0 {
			return &fault.PreconditionError{Reason: "queue is empty"}
		}
		state.UnlockerConfirmed = true
		return c.db.SetLockState(state, txn)
	})
}

// Lock freezes the queue configuration. Issuer-only. Requires a
// non-empty queue, an assigned unlocker, and a standing unlocker
// confirmation for exactly this configuration.
func (c *Controller) Lock(caller roles.Principal) error {
	if err := c.roles.Require(roles.RoleIssuer, caller, "Lock"); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var remaining int64
	err := c.db.Transaction(func(txn *gorm.DB) error {
		state, err := c.db.GetLockState(txn)
		if err != nil {
			return err
		}
		if LockState(state.State) != StateUnlocked {
			return &fault.StateError{
				Operation: "Lock",
				State:     state.State,
			}
		}
		length, err := c.db.QueueLength(txn)
		if err != nil {
			return err
		}
		remaining = length - state.Cursor
		if remaining <= 0 {
			return &fault.PreconditionError{Reason: "queue is empty"}
		}
		if c.roles.Principal(roles.RoleUnlocker) == roles.None {
			return &fault.PreconditionError{Reason: "no unlocker assigned"}
		}
		if !state.UnlockerConfirmed {
			return &fault.PreconditionError{
				Reason: "unlocker has not confirmed this configuration",
			}
		}
		state.State = string(StateLocked)
		return c.db.SetLockState(state, txn)
	})
	if err != nil {
		return err
	}
	c.logger.Info("queue locked", "remaining", remaining)
	c.eventBus.Publish(
		QueueLockedEventType,
		event.NewEvent(
			QueueLockedEventType,
			QueueLockedEvent{Remaining: remaining},
		),
	)
	return nil
}

// UnlockerCheck is the unlocker's post-freeze attestation. It starts
// the cool-down clock and reports what it attested to.
func (c *Controller) UnlockerCheck(
	caller roles.Principal,
) (int64, roles.Principal, error) {
	if err := c.roles.Require(roles.RoleUnlocker, caller, "UnlockerCheck"); err != nil {
		return 0, roles.None, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var remaining int64
	var destination roles.Principal
	err := c.db.Transaction(func(txn *gorm.DB) error {
		state, err := c.db.GetLockState(txn)
		if err != nil {
			return err
		}
		if LockState(state.State) != StateLocked {
			return &fault.StateError{
				Operation: "UnlockerCheck",
				State:     state.State,
			}
		}
		length, err := c.db.QueueLength(txn)
		if err != nil {
			return err
		}
		remaining = length - state.Cursor
		destination = c.effectiveDestination(state)
		state.State = string(StateChecked)
		state.LockCheckTime = c.clock().Unix()
		return c.db.SetLockState(state, txn)
	})
	if err != nil {
		return 0, roles.None, err
	}
	c.logger.Info(
		"queue checked by unlocker",
		"remaining", remaining,
		"destination", string(destination),
	)
	c.eventBus.Publish(
		QueueUnlockerCheckedEventType,
		event.NewEvent(
			QueueUnlockerCheckedEventType,
			QueueUnlockerCheckedEvent{
				Remaining:   remaining,
				Destination: destination,
			},
		),
	)
	return remaining, destination, nil
}

// Deposit records a value transfer from a principal. A non-zero deposit
// from the configured destination while the queue is Locked or Checked
// counts as proof the destination is under real control.
func (c *Controller) Deposit(from roles.Principal, amount uint64) error {
	if amount == 0 {
		return &fault.PreconditionError{Reason: "zero deposit"}
	}
	if from == roles.None {
		return &fault.PreconditionError{Reason: "deposit from unset principal"}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var confirming bool
	err := c.db.Transaction(func(txn *gorm.DB) error {
		err := c.db.AddDeposit(database.Deposit{
			From:       string(from),
			Amount:     amount,
			ReceivedAt: c.clock().Unix(),
		}, txn)
		if err != nil {
			return err
		}
		state, err := c.db.GetLockState(txn)
		if err != nil {
			return err
		}
		lockState := LockState(state.State)
		if from == c.effectiveDestination(state) &&
			(lockState == StateLocked || lockState == StateChecked) {
			confirming = true
			state.ConfirmedDeposit += amount
			return c.db.SetLockState(state, txn)
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.metrics.deposits.Inc()
	if confirming {
		c.logger.Info(
			"destination deposit received",
			"from", string(from),
			"amount", amount,
		)
		c.eventBus.Publish(
			DestinationDepositEventType,
			event.NewEvent(
				DestinationDepositEventType,
				DestinationDepositEvent{From: from, Amount: amount},
			),
		)
	}
	return nil
}

// IssueNext drains exactly one entry into a freshly minted asset.
// Issuer-only. Requires the Checked state, an elapsed cool-down, proof
// of destination control, an elapsed inter-issue delay, and a
// non-exhausted queue.
func (c *Controller) IssueNext(caller roles.Principal) (uint64, error) {
	if err := c.roles.Require(roles.RoleIssuer, caller, "IssueNext"); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock()
	var assetId uint64
	var originalValue string
	err := c.db.Transaction(func(txn *gorm.DB) error {
		state, err := c.db.GetLockState(txn)
		if err != nil {
			return err
		}
		if LockState(state.State) != StateChecked {
			return &fault.StateError{
				Operation: "IssueNext",
				State:     state.State,
			}
		}
		coolDownReady := time.Unix(state.LockCheckTime, 0).Add(c.CoolDown())
		if now.Before(coolDownReady) {
			return &fault.TimingError{
				Operation: "IssueNext",
				ReadyAt:   coolDownReady,
				Now:       now,
			}
		}
		destination := c.effectiveDestination(state)
		if destination != c.roles.Principal(roles.RoleIssuer) &&
			state.ConfirmedDeposit == 0 {
			return &fault.PreconditionError{
				Reason: "destination control not proven",
			}
		}
		if state.LastIssueTime > 0 {
			nextIssueReady := time.Unix(state.LastIssueTime, 0).
				Add(c.InterIssueDelay())
			if now.Before(nextIssueReady) {
				return &fault.TimingError{
					Operation: "IssueNext",
					ReadyAt:   nextIssueReady,
					Now:       now,
				}
			}
		}
		entry, err := c.db.QueueEntryAt(state.Cursor, txn)
		if err != nil {
			return err
		}
		if entry == nil {
			return &fault.PreconditionError{Reason: "queue exhausted"}
		}
		assetId, err = c.minter.Mint(txn, destination, entry.Value)
		if err != nil {
			return err
		}
		originalValue = entry.Value
		state.Cursor++
		state.LastIssueTime = now.Unix()
		return c.db.SetLockState(state, txn)
	})
	if err != nil {
		return 0, err
	}
	// Journal outside the relational transaction; the journal is an
	// audit supplement, not the source of truth.
	if err := c.db.AppendIssuance(assetId, originalValue); err != nil {
		c.logger.Error(
			"failed to journal issuance",
			"asset_id", assetId,
			"error", err,
		)
	}
	c.metrics.assetsIssued.Inc()
	c.metrics.queueRemaining.Dec()
	c.logger.Info(
		"issued asset from queue",
		"asset_id", assetId,
	)
	c.eventBus.Publish(
		AssetIssuedEventType,
		event.NewEvent(
			AssetIssuedEventType,
			AssetIssuedEvent{
				AssetId:       assetId,
				OriginalValue: originalValue,
			},
		),
	)
	return assetId, nil
}

// UnlockAndReset atomically unwinds the whole queue epoch: entries
// cleared, cursor rewound, confirmations dropped, destination back to
// the owner, state Unlocked. Unlocker-only; the independent principal
// must always be able to pull the plug.
func (c *Controller) UnlockAndReset(caller roles.Principal) error {
	if err := c.roles.Require(roles.RoleUnlocker, caller, "UnlockAndReset"); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.db.Transaction(func(txn *gorm.DB) error {
		state, err := c.db.GetLockState(txn)
		if err != nil {
			return err
		}
		if LockState(state.State) == StateUnlocked {
			return &fault.StateError{
				Operation: "UnlockAndReset",
				State:     state.State,
			}
		}
		if err := c.db.ClearQueue(txn); err != nil {
			return err
		}
		state.State = string(StateUnlocked)
		state.Cursor = 0
		state.LockCheckTime = 0
		state.LastIssueTime = 0
		state.Destination = ""
		state.ConfirmedDeposit = 0
		state.UnlockerConfirmed = false
		return c.db.SetLockState(state, txn)
	})
	if err != nil {
		return err
	}
	c.metrics.queueRemaining.Set(0)
	c.logger.Info("queue unlocked and reset")
	c.eventBus.Publish(
		QueueUnlockedEventType,
		event.NewEvent(QueueUnlockedEventType, QueueUnlockedEvent{}),
	)
	return nil
}

// Status reports the current gate and queue position
type Status struct {
	State       LockState
	Destination roles.Principal
	Cursor      int64
	Length      int64
	Remaining   int64
}

func (c *Controller) Status() (Status, error) {
	state, err := c.db.GetLockState(nil)
	if err != nil {
		return Status{}, err
	}
	length, err := c.db.QueueLength(nil)
	if err != nil {
		return Status{}, err
	}
	return Status{
		State:       LockState(state.State),
		Destination: c.effectiveDestination(state),
		Cursor:      state.Cursor,
		Length:      length,
		Remaining:   length - state.Cursor,
	}, nil
}
