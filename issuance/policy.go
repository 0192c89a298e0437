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

package issuance

import (
	"strconv"
	"time"

	"github.com/openhallmark/hallmarkd/fault"
	"github.com/openhallmark/hallmarkd/roles"
)

func (c *Controller) CoolDown() time.Duration {
	c.policyMu.RLock()
	defer c.policyMu.RUnlock()
	return c.coolDown
}

func (c *Controller) InterIssueDelay() time.Duration {
	c.policyMu.RLock()
	defer c.policyMu.RUnlock()
	return c.interIssueDelay
}

// SetCoolDown sets the mandatory delay between the unlocker check and
// the first issuance. Admin-only.
func (c *Controller) SetCoolDown(
	caller roles.Principal,
	coolDown time.Duration,
) error {
	if err := c.roles.Require(roles.RoleAdmin, caller, "SetCoolDown"); err != nil {
		return err
	}
	if coolDown <= 0 {
		return &fault.PreconditionError{Reason: "cool-down must be positive"}
	}
	c.policyMu.Lock()
	defer c.policyMu.Unlock()
	secs := strconv.FormatInt(int64(coolDown/time.Second), 10)
	if err := c.db.SetParam(coolDownParam, secs, nil); err != nil {
		return err
	}
	c.coolDown = coolDown
	return nil
}

// SetInterIssueDelay sets the minimum spacing between consecutive
// issuance calls, throttling automated draining. Admin-only.
func (c *Controller) SetInterIssueDelay(
	caller roles.Principal,
	delay time.Duration,
) error {
	if err := c.roles.Require(roles.RoleAdmin, caller, "SetInterIssueDelay"); err != nil {
		return err
	}
	if delay <= 0 {
		return &fault.PreconditionError{Reason: "inter-issue delay must be positive"}
	}
	c.policyMu.Lock()
	defer c.policyMu.Unlock()
	secs := strconv.FormatInt(int64(delay/time.Second), 10)
	if err := c.db.SetParam(interIssueDelayParam, secs, nil); err != nil {
		return err
	}
	c.interIssueDelay = delay
	return nil
}
