package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given a private registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("tracker"),
				WithMetricPrefix("x_"),
				WithHistogramBuckets([]float64{1, 2, 3}),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then its collectors are registered under the prefix", func() {
				So(m, ShouldNotBeNil)
				m.ticksTotal.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_tracker_x_ticks_total")
			})

			Convey("And the custom labels and buckets are applied", func() {
				m.httpRequestDuration.WithLabelValues("frames", "POST", "202").Observe(2.5)
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() != "test_tracker_x_http_request_duration_milliseconds" {
						continue
					}
					found = true
					metric := f.GetMetric()[0]
					labels := make(map[string]string)
					for _, lp := range metric.GetLabel() {
						labels[lp.GetName()] = lp.GetValue()
					}
					So(labels["env"], ShouldEqual, "test")
					So(metric.GetHistogram().GetBucket(), ShouldHaveLength, 3)
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When creating a second manager on the same registry", func() {
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then registration panics on duplicates", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording a tick", func() {
			before := testutil.ToFloat64(globalManager.ticksTotal)
			RecordTick(0.2)
			So(testutil.ToFloat64(globalManager.ticksTotal), ShouldEqual, before+1)
		})

		Convey("When recording zone crossings", func() {
			entered := testutil.ToFloat64(globalManager.zoneEntered)
			exited := testutil.ToFloat64(globalManager.zoneExited)
			RecordZoneCrossings(2, 1)
			So(testutil.ToFloat64(globalManager.zoneEntered), ShouldEqual, entered+2)
			So(testutil.ToFloat64(globalManager.zoneExited), ShouldEqual, exited+1)
		})

		Convey("When updating gauges", func() {
			UpdateTracksActive(4)
			UpdateROIVertices(5)
			UpdateQueueSize(1)
			UpdateFeedSubscribers(3)
			So(testutil.ToFloat64(globalManager.tracksActive), ShouldEqual, 4)
			So(testutil.ToFloat64(globalManager.roiVertices), ShouldEqual, 5)
			So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 1)
			So(testutil.ToFloat64(globalManager.feedSubscribers), ShouldEqual, 3)
		})

		Convey("When recording detections", func() {
			received := testutil.ToFloat64(globalManager.detectionsReceived)
			skipped := testutil.ToFloat64(globalManager.detectionsSkipped)
			RecordDetections(10, 2)
			So(testutil.ToFloat64(globalManager.detectionsReceived), ShouldEqual, received+10)
			So(testutil.ToFloat64(globalManager.detectionsSkipped), ShouldEqual, skipped+2)
		})

		Convey("When recording labelled metrics", func() {
			So(func() {
				RecordHTTPRequest("frames", "POST", "202")
				RecordHTTPRequestDuration("frames", "POST", "202", 1.5)
				RecordErrorByComponent("worker", "stale_frame")
				RecordErrorByType("client_error", "medium")
				RecordErrorByEndpoint("roi", "PUT", "client_error")
				RecordErrorLatency("http", "client_error", 0.4)
			}, ShouldNotPanic)
			So(testutil.ToFloat64(globalManager.httpRequests.WithLabelValues("frames", "POST", "202")), ShouldBeGreaterThanOrEqualTo, 1)
		})

		Convey("Then the registry is exposed", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
