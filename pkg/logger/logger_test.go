package logger_test

import (
	"bytes"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/meshmindco/meshmind/pkg/logger"
)

var _ = Describe("Logger", func() {
	Describe("NewLoggerWithWriters", func() {
		It("writes info logs to every writer", func() {
			var first, second bytes.Buffer
			log := logger.NewLoggerWithWriters(false, &first, &second)

			log.Info("session created")
			Expect(log.Sync()).To(Succeed())

			Expect(first.String()).To(ContainSubstring("session created"))
			Expect(second.String()).To(ContainSubstring("session created"))
		})

		It("suppresses debug logs unless debug is enabled", func() {
			var quiet, verbose bytes.Buffer

			logger.NewLoggerWithWriters(false, &quiet).Debug("hidden")
			logger.NewLoggerWithWriters(true, &verbose).Debug("visible")

			Expect(quiet.String()).To(BeEmpty())
			Expect(verbose.String()).To(ContainSubstring("visible"))
		})
	})

	Describe("NewJSONLogger", func() {
		It("emits parseable JSON with lowercase levels", func() {
			var buf bytes.Buffer
			log := logger.NewJSONLogger(false, &buf)

			log.Info("event published")

			var entry map[string]any
			Expect(json.Unmarshal(buf.Bytes(), &entry)).To(Succeed())
			Expect(entry["level"]).To(Equal("info"))
			Expect(entry["msg"]).To(Equal("event published"))
			Expect(entry).To(HaveKey("time"))
		})
	})
})
