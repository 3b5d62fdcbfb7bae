/*
Package injection provides prompt injection detection for text entering
the gateway's inspection pipeline.

Three analysis modes are supported:

  - off: no analysis (NoOpDetector)
  - regex: pattern catalogue scoring, <1ms, no external dependencies
  - hybrid: regex pre-filter plus a transformer classifier consulted for
    suspicious inputs via an HTTP inference endpoint

The regex stage scores inputs against a fixed catalogue (instruction
overrides, role manipulation, delimiter confusion, jailbreaks, encoded
payloads) plus two synthetic checks: context marker density and scope
violations. The risk score is the highest matched severity with a +0.05
increment per detection, capped at 1.0. Inputs scoring above 0.5 are
classified as injections.

In hybrid mode the final confidence is a weighted blend (0.7 classifier,
0.3 regex) and the verdict follows the classifier. Classifier failures
degrade to the regex verdict with AnalysisMode "regex_fallback".

ScanIndirect looks for zero-click instructions embedded in third-party
content (tool output, retrieved documents) and recommends QUARANTINE
when any fire.
*/
package injection
