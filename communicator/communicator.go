// Copyright 2025 Magnus Pierre
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

// Package communicator keeps a client side grid in sync with a data
// provider.
//
// The client requests row windows and drops rows it no longer shows. Changes
// accumulate as pending work and are turned into at most three signals per
// response cycle by BeforeClientResponse: reset, setData and updateData, in
// that order.
//
// A DataCommunicator is not safe for concurrent use. All calls for one
// session must be serialized by the caller, normally with a session lock.
package communicator

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/magpierre/datacomm/internal/log"
	"github.com/magpierre/datacomm/monitoring"
	"github.com/magpierre/datacomm/provider"
)

var scope = log.RegisterScope("communicator", "data communicator reconciliation")

// DefaultMinPushSize is the number of rows pushed after a provider change
// before the client has asked for anything.
const DefaultMinPushSize = 40

// Config holds the optional settings of a DataCommunicator.
type Config struct {
	// MinPushSize overrides DefaultMinPushSize when positive.
	MinPushSize int
	// KeyGenerator issues row keys. Defaults to SequentialKeys.
	KeyGenerator KeyGenerator
	// Metrics records cycle statistics. May be nil.
	Metrics *monitoring.Metrics
	// OnDirty is called when the communicator gets pending work, so the
	// owner can schedule a response.
	OnDirty func()
	// Access runs provider events inside the session. Provider listeners
	// may fire from any goroutine; Access must serialize fn with the other
	// calls of the session. Defaults to calling fn directly.
	Access func(fn func())
}

// pending is the work accumulated between two response cycles.
type pending[T any] struct {
	reset   bool
	push    Range
	updated []T
	ids     map[any]int
}

func (p *pending[T]) addUpdated(id any, item T) bool {
	if i, ok := p.ids[id]; ok {
		p.updated[i] = item
		return false
	}
	p.ids[id] = len(p.updated)
	p.updated = append(p.updated, item)
	return true
}

func (p *pending[T]) clearUpdated() {
	p.updated = nil
	clear(p.ids)
}

// DataCommunicator transfers the rows of a data provider to one client.
type DataCommunicator[T any] struct {
	rpc        ClientRPC
	keys       *KeyMapper[T]
	handler    *ActiveDataHandler[T]
	generators []DataGenerator[T]

	source          source[T]
	registration    provider.Registration
	attached        bool
	minPushSize     int
	inMemorySorting provider.Comparator[T]
	backEndSorting  []provider.SortOrder

	pending pending[T]
	dirty   bool

	metrics *monitoring.Metrics
	onDirty func()
	access  func(fn func())
}

var _ DataRequestRPC = (*DataCommunicator[string])(nil)

// New returns a communicator sending its signals through rpc. It starts out
// bound to an empty provider.
func New[T any](rpc ClientRPC, cfg Config) *DataCommunicator[T] {
	c := &DataCommunicator[T]{
		rpc:         rpc,
		keys:        NewKeyMapper[T](cfg.KeyGenerator),
		minPushSize: DefaultMinPushSize,
		metrics:     cfg.Metrics,
		access:      cfg.Access,
	}
	if cfg.MinPushSize > 0 {
		c.minPushSize = cfg.MinPushSize
	}
	if c.access == nil {
		c.access = func(fn func()) { fn() }
	}
	c.pending.ids = make(map[any]int)
	c.handler = newActiveDataHandler[T](c.keys, c.metrics)
	c.handler.destroy = c.destroyData
	c.generators = []DataGenerator[T]{c.handler}

	_, _ = SetDataProvider[T, any](c, provider.NewEmptyDataProvider[T, any](), nil)
	// the initial reset is pending without notifying the owner
	c.onDirty = cfg.OnDirty
	return c
}

// bind replaces the current provider. It is called by SetDataProvider.
func (c *DataCommunicator[T]) bind(s source[T]) {
	c.detachListener()
	c.dropAllData()
	c.source = s
	c.keys.SetIdentifierGetter(s.id)
	c.pending.clearUpdated()
	c.setPushRows(Between(0, c.minPushSize))
	if c.attached {
		c.attachListener()
	}
	scope.Debugf("bound data provider %T", s.unwrap())
	c.Reset()
}

// DataProvider returns the bound provider. Callers type assert it to the
// concrete DataProvider type they bound.
func (c *DataCommunicator[T]) DataProvider() any {
	if c.source == nil {
		return nil
	}
	return c.source.unwrap()
}

// Attach starts listening to change events of the bound provider.
func (c *DataCommunicator[T]) Attach() {
	if c.attached {
		return
	}
	c.attached = true
	c.attachListener()
}

// Detach stops listening to change events of the bound provider.
func (c *DataCommunicator[T]) Detach() {
	c.attached = false
	c.detachListener()
}

// IsAttached reports whether provider events are received.
func (c *DataCommunicator[T]) IsAttached() bool { return c.attached }

func (c *DataCommunicator[T]) attachListener() {
	c.detachListener()
	c.registration = c.source.addListener(func(e provider.DataChangeEvent[T]) {
		c.access(func() { c.onDataChange(e) })
	})
}

func (c *DataCommunicator[T]) detachListener() {
	c.registration.Remove()
	c.registration = nil
}

func (c *DataCommunicator[T]) onDataChange(e provider.DataChangeEvent[T]) {
	if !e.ItemRefresh {
		c.Reset()
		return
	}
	for _, g := range c.generators {
		if r, ok := g.(DataRefresher[T]); ok {
			r.RefreshData(e.Item)
		}
	}
	c.keys.Refresh(e.Item)
	c.Refresh(e.Item)
}

// AddDataGenerator registers g after the already registered generators and
// schedules a reset so every row gets regenerated. Adding a registered
// generator again does nothing.
func (c *DataCommunicator[T]) AddDataGenerator(g DataGenerator[T]) error {
	if g == nil {
		return ErrNilGenerator
	}
	if slices.Contains(c.generators, g) {
		return nil
	}
	c.generators = append(c.generators, g)
	c.Reset()
	return nil
}

// RemoveDataGenerator unregisters g.
func (c *DataCommunicator[T]) RemoveDataGenerator(g DataGenerator[T]) error {
	if g == nil {
		return ErrNilGenerator
	}
	if g == DataGenerator[T](c.handler) {
		return ErrRemoveActiveDataHandler
	}
	c.generators = slices.DeleteFunc(c.generators, func(e DataGenerator[T]) bool { return e == g })
	return nil
}

// Generators returns the registered generators in registration order. The
// active data handler is always first.
func (c *DataCommunicator[T]) Generators() []DataGenerator[T] {
	return slices.Clone(c.generators)
}

// KeyMapper returns the key mapper of the communicator.
func (c *DataCommunicator[T]) KeyMapper() DataKeyMapper[T] { return c.keys }

// ActiveDataHandler returns the tracker of client known rows.
func (c *DataCommunicator[T]) ActiveDataHandler() *ActiveDataHandler[T] { return c.handler }

// ActiveData returns the items currently known to the client.
func (c *DataCommunicator[T]) ActiveData() []T { return c.handler.ActiveData() }

// Reset schedules a full reset for the next cycle.
func (c *DataCommunicator[T]) Reset() {
	if c.pending.reset {
		return
	}
	c.pending.reset = true
	c.markAsDirty()
}

// IsResetPending reports whether the next cycle sends a reset.
func (c *DataCommunicator[T]) IsResetPending() bool { return c.pending.reset }

// Refresh schedules item to be sent again with its current key.
//
// Items that are not active are sent too; the client ignores unknown keys.
func (c *DataCommunicator[T]) Refresh(item T) {
	if c.pending.addUpdated(c.source.id(item), item) && len(c.pending.updated) == 1 {
		c.markAsDirty()
	}
}

// UpdatedData returns the items scheduled for an update.
func (c *DataCommunicator[T]) UpdatedData() []T { return slices.Clone(c.pending.updated) }

// SetInMemorySorting sets the comparator used with in-memory providers.
func (c *DataCommunicator[T]) SetInMemorySorting(cmp provider.Comparator[T]) {
	c.inMemorySorting = cmp
	c.Reset()
}

// InMemorySorting returns the in-memory comparator, or nil.
func (c *DataCommunicator[T]) InMemorySorting() provider.Comparator[T] { return c.inMemorySorting }

// SetBackEndSorting sets the sort orders passed to back-end providers.
func (c *DataCommunicator[T]) SetBackEndSorting(orders []provider.SortOrder) {
	c.backEndSorting = slices.Clone(orders)
	c.Reset()
}

// BackEndSorting returns a copy of the back-end sort orders.
func (c *DataCommunicator[T]) BackEndSorting() []provider.SortOrder {
	return slices.Clone(c.backEndSorting)
}

// SetMinPushSize sets the number of rows pushed after a provider change.
func (c *DataCommunicator[T]) SetMinPushSize(size int) error {
	if size < 0 {
		return ErrNegativePushSize
	}
	c.minPushSize = size
	return nil
}

// MinPushSize returns the number of rows pushed after a provider change.
func (c *DataCommunicator[T]) MinPushSize() int { return c.minPushSize }

// PushRows returns the pending push window.
func (c *DataCommunicator[T]) PushRows() Range { return c.pending.push }

func (c *DataCommunicator[T]) setPushRows(r Range) { c.pending.push = r }

// RequestRows implements DataRequestRPC. The latest request replaces any
// pending window. The part of the window before row 0 is cut off, so the
// pushed rows keep their real indices.
func (c *DataCommunicator[T]) RequestRows(first, count, firstCached, cacheSize int) {
	scope.Debug("rows requested",
		zap.Int("first", first), zap.Int("count", count),
		zap.Int("firstCached", firstCached), zap.Int("cacheSize", cacheSize))
	if first < 0 {
		if count > 0 {
			count = max(count+first, 0)
		}
		first = 0
	}
	c.setPushRows(WithLength(first, count))
	c.markAsDirty()
}

// DropRows implements DataRequestRPC.
func (c *DataCommunicator[T]) DropRows(keys []string) {
	for _, key := range keys {
		c.handler.DropActiveData(key)
	}
}

// IsDirty reports whether there is pending work since the last cycle.
func (c *DataCommunicator[T]) IsDirty() bool { return c.dirty }

func (c *DataCommunicator[T]) markAsDirty() {
	if c.dirty {
		return
	}
	c.dirty = true
	if c.onDirty != nil {
		c.onDirty()
	}
}

// BeforeClientResponse runs one reconciliation cycle. Initial is true for the
// first response to a client, which always starts with a reset.
//
// A failed cycle returns the error and keeps the pending work, so the next
// cycle retries it. Signals sent before the failure are not taken back.
func (c *DataCommunicator[T]) BeforeClientResponse(ctx context.Context, initial bool) error {
	if c.source == nil {
		return nil
	}
	defer c.metrics.ObserveCycle(time.Now())

	resetting := initial || c.pending.reset
	if resetting {
		size, err := c.source.size(ctx)
		if err != nil {
			return c.fail("reset", fmt.Errorf("computing size: %w", err))
		}
		if err := c.rpc.Reset(ctx, size); err != nil {
			return c.fail("reset", fmt.Errorf("sending reset: %w", err))
		}
		c.metrics.Reset()
		scope.Debugf("reset to %d rows", size)
	}

	triggerReset := false
	if window := c.pending.push; !window.IsEmpty() {
		items, err := c.source.fetch(ctx, window, c.backEndSorting, c.inMemorySorting)
		if err != nil {
			return c.fail("setData", fmt.Errorf("fetching rows %s: %w", window, err))
		}
		// nothing at a requested window means the client size is stale
		if !resetting && len(items) == 0 {
			triggerReset = true
		}
		if err := c.pushData(ctx, window.Start, items); err != nil {
			return c.fail("setData", err)
		}
	}

	if len(c.pending.updated) > 0 {
		if err := c.updateData(ctx, c.pending.updated); err != nil {
			return c.fail("updateData", err)
		}
	}

	c.setPushRows(Range{})
	c.pending.reset = triggerReset
	c.pending.clearUpdated()
	c.dirty = false
	if triggerReset {
		c.markAsDirty()
	}
	return nil
}

func (c *DataCommunicator[T]) fail(signal string, err error) error {
	c.metrics.Failed(signal)
	scope.Warnf("%s failed: %v", signal, err)
	return err
}

func (c *DataCommunicator[T]) pushData(ctx context.Context, first int, items []T) error {
	rows := make([]JSONObject, len(items))
	for i, item := range items {
		rows[i] = c.dataObject(item)
	}
	if err := c.rpc.SetData(ctx, first, rows); err != nil {
		return fmt.Errorf("sending %d rows at %d: %w", len(rows), first, err)
	}
	c.metrics.Pushed(len(rows))
	scope.Debugf("pushed %d rows at %d", len(rows), first)

	c.handler.AddActiveData(items)
	c.handler.CleanUp(items)
	return nil
}

func (c *DataCommunicator[T]) updateData(ctx context.Context, items []T) error {
	rows := make([]JSONObject, len(items))
	for i, item := range items {
		rows[i] = c.dataObject(item)
	}
	err := c.rpc.UpdateData(ctx, rows)

	// keys issued only for this update are retired right away
	for _, item := range items {
		if !c.handler.IsActive(item) {
			c.keys.Remove(item)
		}
	}
	if err != nil {
		return fmt.Errorf("sending %d updated rows: %w", len(rows), err)
	}
	c.metrics.Updated(len(rows))
	return nil
}

// dataObject serializes item by running every generator on it.
func (c *DataCommunicator[T]) dataObject(item T) JSONObject {
	row := make(JSONObject)
	for _, g := range c.generators {
		g.GenerateData(item, row)
	}
	return row
}

func (c *DataCommunicator[T]) destroyData(item T) {
	for _, g := range c.generators {
		g.DestroyData(item)
	}
}

func (c *DataCommunicator[T]) dropAllData() {
	for _, g := range c.generators {
		if d, ok := g.(AllDataDestroyer); ok {
			d.DestroyAllData()
		}
	}
}
