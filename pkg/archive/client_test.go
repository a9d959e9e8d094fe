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

package archive_test

import (
	"context"
	"errors"
	"time"

	"github.com/h2non/gock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/archive"
)

var _ = Describe("DataArchive client", func() {

	const baseURL = "http://archive.test/archive"

	var client *archive.DataArchive

	BeforeEach(func() {
		client = archive.NewDataArchive(baseURL)
		gock.InterceptClient(client.HTTPClient())
	})

	AfterEach(func() {
		gock.Off()
	})

	Context("FindPoint", func() {
		It("resolves an existing point", func() {
			gock.New(baseURL).
				Get("/points").
				MatchParam("name", "calc.input1").
				Reply(200).
				JSON(map[string]string{"webId": "w-1", "name": "calc.input1"})

			point, err := client.FindPoint(context.Background(), "calc.input1")
			Expect(err).ToNot(HaveOccurred())
			Expect(point.WebID).To(Equal("w-1"))
			Expect(point.Name).To(Equal("calc.input1"))
		})

		It("maps a 404 to ErrPointNotFound", func() {
			gock.New(baseURL).
				Get("/points").
				Reply(404).
				JSON(map[string]string{"error": "point not found"})

			_, err := client.FindPoint(context.Background(), "calc.missing")
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, archive.ErrPointNotFound)).To(BeTrue())
		})
	})

	Context("CreatePoint", func() {
		It("creates a point with attributes", func() {
			gock.New(baseURL).
				Post("/points").
				JSON(map[string]any{
					"name":       "calc.output1",
					"attributes": map[string]any{"compressing": 0},
				}).
				Reply(201).
				JSON(map[string]string{"webId": "w-2", "name": "calc.output1"})

			point, err := client.CreatePoint(context.Background(), "calc.output1",
				map[string]any{archive.AttrCompressing: 0})
			Expect(err).ToNot(HaveOccurred())
			Expect(point.WebID).To(Equal("w-2"))
		})

		It("maps a 409 to ErrPointExists", func() {
			gock.New(baseURL).
				Post("/points").
				Reply(409).
				JSON(map[string]string{"error": "point already exists"})

			_, err := client.CreatePoint(context.Background(), "calc.output1", nil)
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, archive.ErrPointExists)).To(BeTrue())
		})
	})

	Context("SavePoint", func() {
		It("flushes staged attributes and clears them", func() {
			gock.New(baseURL).
				Patch("/points/w-2/attributes").
				Reply(200)

			point := &archive.Point{WebID: "w-2", Name: "calc.output1"}
			point.SetAttribute(archive.AttrCompressing, 0)
			point.SetAttribute(archive.AttrExceptionDeviation, 0)

			Expect(client.SavePoint(context.Background(), point)).To(Succeed())
			Expect(point.PendingAttributes()).To(BeEmpty())
		})

		It("is a no-op without staged attributes", func() {
			// No gock expectation: any request here would fail to match.
			point := &archive.Point{WebID: "w-2", Name: "calc.output1"}
			Expect(client.SavePoint(context.Background(), point)).To(Succeed())
		})
	})

	Context("RecordedValuesDescending", func() {
		It("decodes the recorded values", func() {
			now := time.Now().UTC().Truncate(time.Millisecond)
			gock.New(baseURL).
				Get("/streams/w-2/recorded").
				MatchParam("count", "3").
				MatchParam("order", "descending").
				Reply(200).
				JSON(map[string]any{"items": []archive.Value{
					{Timestamp: now, Value: 3, Good: true},
					{Timestamp: now.Add(-time.Second), Value: 2, Good: true},
					{Timestamp: now.Add(-2 * time.Second), Value: 1, Good: true},
				}})

			point := &archive.Point{WebID: "w-2", Name: "calc.output1"}
			values, err := client.RecordedValuesDescending(context.Background(), point, 3)
			Expect(err).ToNot(HaveOccurred())
			Expect(values).To(HaveLen(3))
			Expect(values[0].Value).To(Equal(3.0))
			Expect(values[0].Timestamp).To(BeTemporally("==", now))
			Expect(values[2].Good).To(BeTrue())
		})
	})

	Context("WriteValue", func() {
		It("posts the value to the stream", func() {
			gock.New(baseURL).
				Post("/streams/w-1/value").
				Reply(202)

			point := &archive.Point{WebID: "w-1", Name: "calc.input1"}
			err := client.WriteValue(context.Background(), point,
				archive.Value{Timestamp: time.Now(), Value: 42.5, Good: true})
			Expect(err).ToNot(HaveOccurred())
		})

		It("surfaces a non-2xx status", func() {
			gock.New(baseURL).
				Post("/streams/w-1/value").
				Reply(400).
				JSON(map[string]string{"error": "bad timestamp"})

			point := &archive.Point{WebID: "w-1", Name: "calc.input1"}
			err := client.WriteValue(context.Background(), point, archive.Value{})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("bad timestamp"))
		})
	})

	Context("DeletePoint", func() {
		It("deletes the point", func() {
			gock.New(baseURL).
				Delete("/points/w-1").
				Reply(204)

			point := &archive.Point{WebID: "w-1", Name: "calc.input1"}
			Expect(client.DeletePoint(context.Background(), point)).To(Succeed())
		})
	})
})
