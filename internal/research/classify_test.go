package research

import (
	"testing"

	"trendscout/researchservice/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		video domain.VideoRecord
		want  domain.ContentFormat
	}{
		{"short clip", domain.VideoRecord{DurationSeconds: 45}, domain.ContentFormatShort},
		{"exactly a minute", domain.VideoRecord{DurationSeconds: 60}, domain.ContentFormatShort},
		{"just over a minute", domain.VideoRecord{DurationSeconds: 61}, domain.ContentFormatRegular},
		{"long upload", domain.VideoRecord{DurationSeconds: 3600}, domain.ContentFormatRegular},
		{"live broadcast", domain.VideoRecord{DurationSeconds: 45, LiveStatus: domain.LiveStatusLive}, domain.ContentFormatLive},
		{"live without duration", domain.VideoRecord{LiveStatus: domain.LiveStatusLive}, domain.ContentFormatLive},
		{"upcoming premiere", domain.VideoRecord{DurationSeconds: 0, LiveStatus: domain.LiveStatusUpcoming}, domain.ContentFormatRegular},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.video); got != tc.want {
				t.Fatalf("Classify = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFilterByFormatShortExcludesLive(t *testing.T) {
	videos := []domain.VideoRecord{
		{ID: "regular", DurationSeconds: 600},
		{ID: "short-1", DurationSeconds: 30},
		{ID: "live-45", DurationSeconds: 45, LiveStatus: domain.LiveStatusLive},
		{ID: "short-2", DurationSeconds: 59},
	}
	got := FilterByFormat(videos, domain.FormatFilterShort)
	if len(got) != 2 || got[0].ID != "short-1" || got[1].ID != "short-2" {
		t.Fatalf("unexpected short subset: %+v", got)
	}

	live := FilterByFormat(videos, domain.FormatFilterLive)
	if len(live) != 1 || live[0].ID != "live-45" {
		t.Fatalf("unexpected live subset: %+v", live)
	}

	regular := FilterByFormat(videos, domain.FormatFilterRegular)
	if len(regular) != 1 || regular[0].ID != "regular" {
		t.Fatalf("unexpected regular subset: %+v", regular)
	}
}

func TestFilterByFormatAllKeepsEverything(t *testing.T) {
	videos := []domain.VideoRecord{
		{ID: "b", DurationSeconds: 600},
		{ID: "a", DurationSeconds: 30},
		{ID: "c", LiveStatus: domain.LiveStatusLive},
	}
	got := FilterByFormat(videos, domain.FormatFilterAll)
	if len(got) != len(videos) {
		t.Fatalf("expected %d videos, got %d", len(videos), len(got))
	}
	for i := range videos {
		if got[i].ID != videos[i].ID {
			t.Fatalf("order changed at %d: %q vs %q", i, got[i].ID, videos[i].ID)
		}
	}
}

func TestFormatPartitionIsExhaustive(t *testing.T) {
	videos := []domain.VideoRecord{
		{ID: "1", DurationSeconds: 0},
		{ID: "2", DurationSeconds: 60, LiveStatus: domain.LiveStatusUpcoming},
		{ID: "3", DurationSeconds: 61},
		{ID: "4", DurationSeconds: 10, LiveStatus: domain.LiveStatusLive},
		{ID: "5", DurationSeconds: 7200, LiveStatus: domain.LiveStatusLive},
	}
	total := 0
	for _, filter := range []domain.FormatFilter{domain.FormatFilterShort, domain.FormatFilterLive, domain.FormatFilterRegular} {
		total += len(FilterByFormat(videos, filter))
	}
	if total != len(videos) {
		t.Fatalf("expected each video in exactly one format, got %d of %d", total, len(videos))
	}
}

func TestFormatHint(t *testing.T) {
	if got := formatHint(domain.FormatFilterShort); got != domain.ContentFormatShort {
		t.Fatalf("short hint: %q", got)
	}
	if got := formatHint(domain.FormatFilterLive); got != domain.ContentFormatLive {
		t.Fatalf("live hint: %q", got)
	}
	if got := formatHint(domain.FormatFilterRegular); got != "" {
		t.Fatalf("regular has no provider hint, got %q", got)
	}
}
