// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package harness

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type junitSuite struct {
	XMLName   xml.Name    `xml:"testsuite"`
	Name      string      `xml:"name,attr"`
	Tests     int         `xml:"tests,attr"`
	Failures  int         `xml:"failures,attr"`
	TestCases []junitCase `xml:"testcase"`
}

type junitCase struct {
	Classname string        `xml:"classname,attr"`
	Name      string        `xml:"name,attr"`
	Time      string        `xml:"time,attr"`
	SystemOut string        `xml:"system-out,omitempty"`
	Failure   *junitFailure `xml:"failure,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr,omitempty"`
	Details string `xml:",chardata"`
}

func writeJUnitReport(path string, results []scenarioResult) error {
	if path == "" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("harness: junit dir: %w", err)
		}
	}

	suite := junitSuite{
		Name:     "sctpsock-harness",
		Tests:    len(results),
		Failures: countFailures(results),
	}
	for _, res := range results {
		jc := junitCase{
			Classname: "sctpsock." + res.CaseName,
			Name:      fmt.Sprintf("%s#%d", res.CaseName, res.Iteration),
			Time:      fmt.Sprintf("%.3f", res.Metrics.Duration.Seconds()),
			SystemOut: fmt.Sprintf("listener=%s dialer=%s\n%s", res.ListenerOutcome, res.DialerOutcome, formatMetrics(res.Metrics)),
		}
		if !res.Passed {
			jc.Failure = &junitFailure{
				Message: failureMessage(res),
				Details: res.Details,
			}
		}
		suite.TestCases = append(suite.TestCases, jc)
	}

	data, err := xml.MarshalIndent(suite, "", "  ")
	if err != nil {
		return fmt.Errorf("harness: marshal junit: %w", err)
	}
	data = append([]byte(xml.Header), data...)

	return os.WriteFile(filepath.Clean(path), data, 0o600)
}

// failureMessage names the violated assertions, falling back to a generic
// message for errored runs.
func failureMessage(res scenarioResult) string {
	if _, failures, ok := strings.Cut(res.Details, "assert="); ok && failures != "" {
		return "policy: " + failures
	}
	if res.Errored {
		return "case errored"
	}

	return "case policy not met"
}
