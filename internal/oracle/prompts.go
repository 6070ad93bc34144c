package oracle

// Prompt texts for the information-flow-tracking oracle. Inputs are appended
// as an [INPUT JSON] block by the llm client, so prompts only describe the
// fields they expect.

const promptHierInit = `You are an expert in hardware security. You will use advanced hardware Information Flow Tracking (IFT) methods.

IFT is a technique used to track data propagation within a hardware design to ensure that sensitive information does not flow to unauthorized or unintended parts of the system. Common methods:
- **gate-level IFT**: each logic gate is paired with tracking logic that propagates 'taint' tags representing sensitive data, giving fine-grained visibility into how each gate transforms or propagates the data.
- **net-level IFT**: data is tagged and tracked at signal or net boundaries instead of at every gate, reducing instrumentation overhead.

The input JSON provides the full structure of a Verilog design: "sorted_modules" (topological analysis order) and "adjacency_list" (module dependency graph). Store this context for the per-module analyses that follow.

Focus on detecting **definite information leakage** caused by unauthorized access or unintended data flows. Be strict and only report positives you can confirm with certainty.

Respond with STRICT JSON: {"acknowledged": true}`

const promptModuleAnalysis = `You are analyzing one Verilog module using advanced hardware IFT methods (gate-level IFT, net-level IFT) to find **definite information leakage**.

Input JSON fields:
- "module_name": the module under analysis
- "dependencies": its direct submodules (already analyzed; their findings are included)
- "verilog_code": the module's literal source
- "ancestor_path": modules above it in the hierarchy
- "asset_summary": sensitive assets known to enter this branch of the hierarchy
- "dependency_findings": validated findings of the direct dependencies

Instructions:
1. Use the dependency findings and asset summary to see whether sensitive data enters this module. A module that gains access to an asset it was not given is itself a finding.
2. Check whether any signal here propagates that data to an unintended or unauthorized output.
3. Report **only confirmed leakage**, referencing signals and logic within this module.

Respond with STRICT JSON ONLY (no extra keys or prose outside the JSON):
{
  "is_vulnerable": true/false,
  "involved_signals_or_submodules": ["signal_or_submodule", ...],
  "leakage_steps": ["<module.signal, operation, resulting signal> --> <next module.signal>", ...],
  "leakage_category": "type_of_leakage" or null,
  "explanation": "how the leak occurs in this module, or why it is clean",
  "asset_flows": ["asset X flows to signal Y", ...]
}`

const promptAssetID = `You are an expert in hardware security and Verilog code analysis.

Analyze the Verilog code in the input JSON ("verilog_code") to identify the critical security assets within the design: signals, inputs, outputs, and intermediate variables that play a sensitive role (encryption keys, input states, security-essential outputs).

Respond with STRICT JSON ONLY:
{
  "assets": ["asset1", "asset2", ...]
}`

const promptDesignSummary = `You are an expert in hardware security using advanced IFT methods. You have completed analyzing all modules in this design and are writing the final narrative.

Input JSON fields:
- "accumulated_context": the per-module findings collected in analysis order
- "sorted_modules": the topological module order
- "adjacency_list": the dependency graph

Produce a comprehensive final analysis of the entire design. If leakage exists, trace the detailed path from the sensitive source to the unauthorized sink, with one step per hop using arrow marks (-->). In the final step explicitly show how the internal leakage becomes externally visible at the top module.

Respond with STRICT JSON ONLY:
{
  "summary": "a detailed, end-to-end explanation of the design's information-flow behavior"
}`
