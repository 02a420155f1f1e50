package mission

import (
	"testing"
	"time"
)

func assertPartition(t *testing.T, segments []Segment, start, end time.Time) {
	t.Helper()
	if len(segments) == 0 {
		t.Fatal("empty partition")
	}
	if !segments[0].Start.Equal(start) {
		t.Errorf("partition start = %v, want %v", segments[0].Start, start)
	}
	if !segments[len(segments)-1].End.Equal(end) {
		t.Errorf("partition end = %v, want %v", segments[len(segments)-1].End, end)
	}
	var total time.Duration
	for i, seg := range segments {
		total += seg.Duration()
		if i > 0 && !segments[i-1].End.Equal(seg.Start) {
			t.Errorf("discontinuity between segment %d and %d", i-1, i)
		}
	}
	if total != end.Sub(start) {
		t.Errorf("segment durations sum to %v, want %v", total, end.Sub(start))
	}
}

func TestAssembleTimelinePartitionsWindow(t *testing.T) {
	w := testWindow()
	events := []Event{
		{Timestamp: w.Start, Type: EventBufferStart, Transport: TransportX, Affected: AllTransports, Severity: SeveritySafety, Reason: "takeoff safety buffer", Seq: 0},
		{Timestamp: w.Start.Add(10 * time.Minute), Type: EventBufferEnd, Transport: TransportX, Affected: AllTransports, Severity: SeverityInfo, Reason: "takeoff safety buffer cleared", Seq: 1},
		{Timestamp: w.Start.Add(30 * time.Minute), Type: EventOutageStart, Transport: TransportKa, Severity: SeverityWarning, Reason: "scheduled maintenance", Seq: 2},
		{Timestamp: w.Start.Add(45 * time.Minute), Type: EventAzimuthViolation, Transport: TransportX, Severity: SeverityWarning, Reason: "antenna azimuth in exclusion zone", Seq: 3},
		{Timestamp: w.Start.Add(50 * time.Minute), Type: EventAzimuthClear, Transport: TransportX, Severity: SeverityInfo, Reason: "cleared", Seq: 4},
		{Timestamp: w.Start.Add(60 * time.Minute), Type: EventOutageEnd, Transport: TransportKa, Severity: SeverityInfo, Reason: "scheduled maintenance ended", Seq: 5},
	}

	segments := AssembleTimeline(w, events)
	assertPartition(t, segments, w.Start, w.End)
}

func TestAssembleTimelineOutageIsOffline(t *testing.T) {
	w := testWindow()
	events := []Event{
		{Timestamp: w.Start.Add(30 * time.Minute), Type: EventOutageStart, Transport: TransportKa, Severity: SeverityWarning, Reason: "jamming exercise", Seq: 0},
		{Timestamp: w.Start.Add(60 * time.Minute), Type: EventOutageEnd, Transport: TransportKa, Severity: SeverityInfo, Reason: "jamming exercise ended", Seq: 1},
	}

	segments := AssembleTimeline(w, events)
	assertPartition(t, segments, w.Start, w.End)
	if len(segments) != 3 {
		t.Fatalf("segments = %d, want 3", len(segments))
	}

	mid := segments[1]
	if mid.Status != StatusDegraded {
		t.Errorf("outage segment status = %s, want degraded", mid.Status)
	}
	if mid.States[TransportKa] != StateOffline {
		t.Errorf("Ka state = %s, want offline", mid.States[TransportKa])
	}
	if mid.States[TransportX] != StateAvailable || mid.States[TransportKu] != StateAvailable {
		t.Error("unrelated transports not available during Ka outage")
	}
}

func TestAssembleTimelineTwoImpactedIsCritical(t *testing.T) {
	w := testWindow()
	events := []Event{
		{Timestamp: w.Start.Add(10 * time.Minute), Type: EventOutageStart, Transport: TransportKa, Severity: SeverityWarning, Reason: "outage", Seq: 0},
		{Timestamp: w.Start.Add(20 * time.Minute), Type: EventAzimuthViolation, Transport: TransportX, Severity: SeverityWarning, Reason: "exclusion", Seq: 1},
		{Timestamp: w.Start.Add(30 * time.Minute), Type: EventAzimuthClear, Transport: TransportX, Severity: SeverityInfo, Reason: "cleared", Seq: 2},
		{Timestamp: w.Start.Add(40 * time.Minute), Type: EventOutageEnd, Transport: TransportKa, Severity: SeverityInfo, Reason: "outage ended", Seq: 3},
	}

	segments := AssembleTimeline(w, events)
	assertPartition(t, segments, w.Start, w.End)

	var critical *Segment
	for i := range segments {
		if segments[i].Status == StatusCritical {
			critical = &segments[i]
		}
	}
	if critical == nil {
		t.Fatal("no critical segment with two transports impacted")
	}
	if !critical.Start.Equal(w.Start.Add(20*time.Minute)) || !critical.End.Equal(w.Start.Add(30*time.Minute)) {
		t.Errorf("critical segment [%v, %v), want [%v, %v)",
			critical.Start, critical.End, w.Start.Add(20*time.Minute), w.Start.Add(30*time.Minute))
	}
}

func TestAssembleTimelineAftConflictDowngrades(t *testing.T) {
	w := testWindow()
	at := w.Start.Add(30 * time.Minute)
	clear := w.Start.Add(45 * time.Minute)
	events := []Event{
		{Timestamp: at, Type: EventAzimuthViolation, Transport: TransportX, Severity: SeverityWarning, Reason: "antenna azimuth in exclusion zone", AftConflict: true, Seq: 0},
		{Timestamp: at, Type: EventAzimuthViolation, Transport: TransportKu, Severity: SeverityWarning, Reason: "antenna azimuth in exclusion zone", AftConflict: true, Seq: 1},
		{Timestamp: clear, Type: EventAzimuthClear, Transport: TransportX, Severity: SeverityInfo, Reason: "cleared", AftConflict: true, Seq: 2},
		{Timestamp: clear, Type: EventAzimuthClear, Transport: TransportKu, Severity: SeverityInfo, Reason: "cleared", AftConflict: true, Seq: 3},
	}

	segments := AssembleTimeline(w, events)
	assertPartition(t, segments, w.Start, w.End)

	var aft *Segment
	for i := range segments {
		if segments[i].AftConflictOnly {
			aft = &segments[i]
		}
	}
	if aft == nil {
		t.Fatal("no segment flagged as aft conflict only")
	}
	if aft.Status != StatusNominal {
		t.Errorf("aft conflict segment status = %s, want nominal", aft.Status)
	}
	if aft.States[TransportX] != StateDegraded || aft.States[TransportKu] != StateDegraded {
		t.Error("aft conflict segment should keep X and Ku degraded in per-transport states")
	}
	if len(aft.Reasons) == 0 {
		t.Error("aft conflict segment lost its reasons")
	}
}

func TestAssembleTimelineAftConflictWithOutageStaysCritical(t *testing.T) {
	w := testWindow()
	at := w.Start.Add(30 * time.Minute)
	clear := w.Start.Add(45 * time.Minute)
	events := []Event{
		{Timestamp: at, Type: EventAzimuthViolation, Transport: TransportX, Severity: SeverityWarning, Reason: "exclusion", AftConflict: true, Seq: 0},
		{Timestamp: at, Type: EventAzimuthViolation, Transport: TransportKu, Severity: SeverityWarning, Reason: "exclusion", AftConflict: true, Seq: 1},
		{Timestamp: at, Type: EventOutageStart, Transport: TransportKa, Severity: SeverityWarning, Reason: "outage", Seq: 2},
		{Timestamp: clear, Type: EventAzimuthClear, Transport: TransportX, Severity: SeverityInfo, Reason: "cleared", AftConflict: true, Seq: 3},
		{Timestamp: clear, Type: EventAzimuthClear, Transport: TransportKu, Severity: SeverityInfo, Reason: "cleared", AftConflict: true, Seq: 4},
		{Timestamp: clear, Type: EventOutageEnd, Transport: TransportKa, Severity: SeverityInfo, Reason: "outage ended", Seq: 5},
	}

	segments := AssembleTimeline(w, events)
	for _, seg := range segments {
		if seg.AftConflictOnly {
			t.Error("segment with a Ka outage must not be downgraded as aft conflict only")
		}
		if seg.Start.Equal(at) && seg.Status != StatusCritical {
			t.Errorf("three-transport segment status = %s, want critical", seg.Status)
		}
	}
}

func TestAssembleTimelineMergesInfoBoundaries(t *testing.T) {
	w := testWindow()
	// Refueling markers are informational: they create candidate boundaries
	// but no state change, so the partition collapses back to one segment.
	events := []Event{
		{Timestamp: w.Start.Add(30 * time.Minute), Type: EventRefuelStart, Transport: TransportX, Severity: SeverityInfo, Reason: "refueling window", Seq: 0},
		{Timestamp: w.Start.Add(60 * time.Minute), Type: EventRefuelEnd, Transport: TransportX, Severity: SeverityInfo, Reason: "refueling window ended", Seq: 1},
	}

	segments := AssembleTimeline(w, events)
	if len(segments) != 1 {
		t.Fatalf("segments = %d, want 1 after merging", len(segments))
	}
	if segments[0].Status != StatusNominal {
		t.Errorf("status = %s, want nominal", segments[0].Status)
	}
	assertPartition(t, segments, w.Start, w.End)
}

func TestAttachStatistics(t *testing.T) {
	w := testWindow()
	segments := []Segment{
		{Start: w.Start, End: w.Start.Add(10 * time.Minute), Status: StatusCritical},
		{Start: w.Start.Add(10 * time.Minute), End: w.End.Add(-10 * time.Minute), Status: StatusNominal},
		{Start: w.End.Add(-10 * time.Minute), End: w.End, Status: StatusCritical},
	}

	stats := AttachStatistics(segments, w.Start.Add(30*time.Minute))
	if got := stats.SecondsByStatus[StatusCritical]; got != 1200 {
		t.Errorf("critical seconds = %v, want 1200", got)
	}
	if got := stats.SecondsByStatus[StatusNominal]; got != 6000 {
		t.Errorf("nominal seconds = %v, want 6000", got)
	}
	// 30 minutes in, next critical segment starts at end-10m: 80 minutes out.
	if got := stats.NextNonNominalInSecs; got != 4800 {
		t.Errorf("next non-nominal = %v, want 4800", got)
	}
}

func TestAttachStatisticsInsideNonNominal(t *testing.T) {
	w := testWindow()
	segments := []Segment{
		{Start: w.Start, End: w.Start.Add(10 * time.Minute), Status: StatusCritical},
		{Start: w.Start.Add(10 * time.Minute), End: w.End, Status: StatusNominal},
	}

	stats := AttachStatistics(segments, w.Start.Add(5*time.Minute))
	if stats.NextNonNominalInSecs != 0 {
		t.Errorf("next non-nominal = %v, want 0 while inside", stats.NextNonNominalInSecs)
	}

	stats = AttachStatistics(segments, w.Start.Add(30*time.Minute))
	if stats.NextNonNominalInSecs != -1 {
		t.Errorf("next non-nominal = %v, want -1 with none remaining", stats.NextNonNominalInSecs)
	}
}
