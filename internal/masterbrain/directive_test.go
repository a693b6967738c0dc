package masterbrain

import (
	"reflect"
	"testing"
)

func TestParseDirectiveScalar(t *testing.T) {
	d, ok := parseDirective(`technical_analysis(symbol="BTCUSDT")`)
	if !ok {
		t.Fatalf("parseDirective() ok = false, want true")
	}
	if d.name != "technical_analysis" {
		t.Fatalf("name = %q, want technical_analysis", d.name)
	}
	if d.args["symbol"] != "BTCUSDT" {
		t.Fatalf("args[symbol] = %v, want BTCUSDT", d.args["symbol"])
	}
}

func TestParseDirectiveBracketedList(t *testing.T) {
	d, ok := parseDirective(`set_monitoring_symbols(primary_symbols=["BTCUSDT", "ETHUSDT"])`)
	if !ok {
		t.Fatalf("parseDirective() ok = false, want true")
	}
	got, ok := d.args["primary_symbols"].([]string)
	if !ok {
		t.Fatalf("args[primary_symbols] type = %T, want []string", d.args["primary_symbols"])
	}
	want := []string{"BTCUSDT", "ETHUSDT"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("primary_symbols = %v, want %v", got, want)
	}
}

func TestParseDirectiveMixedArgs(t *testing.T) {
	d, ok := parseDirective(`comprehensive_analysis(question="分析一下", symbols=[BTCUSDT, ETHUSDT])`)
	if !ok {
		t.Fatalf("parseDirective() ok = false, want true")
	}
	if d.args["question"] != "分析一下" {
		t.Fatalf("question = %v", d.args["question"])
	}
	got := d.args["symbols"].([]string)
	want := []string{"BTCUSDT", "ETHUSDT"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("symbols = %v, want %v", got, want)
	}
}

func TestParseDirectiveMissingParenIsInvalid(t *testing.T) {
	if _, ok := parseDirective("not_a_call"); ok {
		t.Fatalf("parseDirective() ok = true, want false for malformed input")
	}
}

func TestParseDirectiveBareToken(t *testing.T) {
	d, ok := parseDirective(`set_heartbeat_interval(interval_seconds=120)`)
	if !ok {
		t.Fatalf("parseDirective() ok = false, want true")
	}
	if d.args["interval_seconds"] != "120" {
		t.Fatalf("interval_seconds = %v, want \"120\"", d.args["interval_seconds"])
	}
}
