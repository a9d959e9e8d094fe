// Copyright 2026 OSIsoft, LLC
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

package metrics

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/logger"
)

var _ = Describe("Error counters", func() {

	It("registers a series at zero on init", func() {
		InitErrorCounter("test_component", "init_only")

		value := testutil.ToFloat64(errorCounter.WithLabelValues("test_component", "init_only"))
		Expect(value).To(BeZero())
	})

	It("increments on every recorded error", func() {
		IncErrorCountAndLog("test_component", "failing", errors.New("boom"), logger.For("test"))
		IncErrorCountAndLog("test_component", "failing", errors.New("boom"), nil)

		value := testutil.ToFloat64(errorCounter.WithLabelValues("test_component", "failing"))
		Expect(value).To(Equal(2.0))
	})
})
