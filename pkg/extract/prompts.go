package extract

const BackbonePrompt = `
# Task Context
You are tasked with extracting the **structural skeleton** of an entire document as a knowledge graph: the main entities and the relations that organize the document as a whole.

# Detailed Task Description & Rules
- Identify the entities that recur across the document or anchor its structure (systems, components, people, organizations, concepts, places).
- Extract the relations that connect these top-level entities. Prefer relations that span sections or paragraphs over one-off details; fine-grained facts are extracted in a later pass.
- Use entity names exactly as they appear in the text. Do not invent entities that are not named.
- Write each relation as a short lowercase verb phrase (e.g., "stores_data_in", "reports_to", "depends_on").
- Never relate an entity to itself, and never repeat the same triple.
- Also produce a summary of the whole document in one to three sentences.

# Examples
**Text:**
The collector scrapes records from the network and writes them into MongoDB.
Records read back from MongoDB are cleaned and deduplicated by the preprocessor.
The cleaned records feed the feature extractor, which produces vectors.

**Output:**
{
  "summary": "A data pipeline in which a collector scrapes records into MongoDB, a preprocessor cleans them, and a feature extractor turns the cleaned records into vectors.",
  "triples": [
    { "source": "collector", "relation": "writes_into", "target": "MongoDB" },
    { "source": "preprocessor", "relation": "reads_from", "target": "MongoDB" },
    { "source": "preprocessor", "relation": "feeds", "target": "feature extractor" }
  ]
}

# Output Formatting
The output must be a single valid JSON object in this structure:
{
  "summary": "string",
  "triples": [
    { "source": "string", "relation": "string", "target": "string" }
  ]
}
Do not include any commentary, explanations, or text outside of the JSON.
Always return valid JSON, even if no triples are found (use an empty array in that case).
`

const LocalFactsPrompt = `
# Task Context
You are tasked with extracting **every explicit fact** from a single text fragment as subject-relation-object triples, together with a one-line summary of the fragment.

# Detailed Task Description & Rules
- Extract all entities and relationships explicitly stated in the fragment, without omission. Include attribute facts (sizes, dates, counts, roles) as triples whose target is the attribute value.
- Use entity names exactly as written in the fragment. Do not resolve abbreviations or rename entities; naming conflicts are reconciled in a later pass.
- Write each relation as a short lowercase verb phrase.
- Do not infer facts that are not stated. Do not repeat a triple you have already emitted.
- The summary must be a single sentence capturing what this fragment is about.

# Examples
**Text:**
Martin Smith chairs the Market Strategy Committee. The committee meets on Thursdays and sets the benchmark rate.

**Output:**
{
  "summary": "Martin Smith chairs the Market Strategy Committee, which meets on Thursdays and sets the benchmark rate.",
  "triples": [
    { "source": "Martin Smith", "relation": "chairs", "target": "Market Strategy Committee" },
    { "source": "Market Strategy Committee", "relation": "meets_on", "target": "Thursdays" },
    { "source": "Market Strategy Committee", "relation": "sets", "target": "benchmark rate" }
  ]
}

# Output Formatting
The output must be a single valid JSON object in this structure:
{
  "summary": "string",
  "triples": [
    { "source": "string", "relation": "string", "target": "string" }
  ]
}
Do not include any commentary, explanations, or text outside of the JSON.
Always return valid JSON, even if no triples are found (use an empty array in that case).
`

const DrilldownPrompt = `
# Task Context
You are tasked with a **fine-grained extraction pass** over a short text fragment that surrounds entities already known to be important. Earlier passes captured the coarse structure; your job is the detail.

# Detailed Task Description & Rules
- Extract dense, specific relations: qualifiers, conditions, quantities, secondary entities, and attribute values that a coarse pass would skip.
- Use entity names exactly as written in the fragment.
- Write each relation as a short lowercase verb phrase. Prefer precise relations ("approved_on", "limited_to") over generic ones ("related_to").
- Only extract what the fragment states. Do not infer or generalize.
- The summary must be a single short sentence.

# Output Formatting
The output must be a single valid JSON object in this structure:
{
  "summary": "string",
  "triples": [
    { "source": "string", "relation": "string", "target": "string" }
  ]
}
Do not include any commentary, explanations, or text outside of the JSON.
Always return valid JSON, even if no triples are found (use an empty array in that case).
`

const ResolutionPrompt = `
# Task Context
You are a helpful assistant specialized in identifying duplicate entities in a knowledge graph. You will be provided with the graph's edges; the node labels appearing in them are the candidates.

# Background Data
%s

# Detailed Task Description & Rules
- Find labels that name the same real-world entity despite surface differences.
- Be careful: entities with distinct identities must remain separate (e.g., "EWE", "EWE AG", "EWE TEL" are separate entities).
- Consider variations such as:
  * Case differences (e.g., "Acme Corp" vs "ACME CORP")
  * Added legal entity suffixes (e.g., "IBM" vs "IBM Corporation")
  * Abbreviations and full names (e.g., "AI" vs "Artificial Intelligence")
  * Whitespace and punctuation differences
- Every label in a group must appear verbatim in the edges above. Every group must contain at least two labels.
- Return at most 20 groups, prioritized by confidence. If you are unsure about a pair, leave it out.

# Examples
Consider these as the same entity:
- "Microsoft" and "Microsoft Corporation"
- "Google LLC" and "Google"

Do NOT consider these as the same entity:
- "EWE" and "EWE AG" (different legal entities)
- "Amazon" and "Amazon Web Services" (different business units)

# Output Formatting
Return a JSON object with this structure:
{
  "groups": [
    { "labels": ["<label1>", "<label2>", "<label3>"] }
  ]
}
Do not include any commentary, explanations, or text outside of the JSON.
Always return valid JSON, even if no groups are found (use an empty array in that case).
`

const PruningPrompt = `
# Task Context
You are a helpful assistant specialized in cleaning noise out of a knowledge graph. You will be provided with the graph's edges.

# Background Data
%s

# Detailed Task Description & Rules
- Flag edges that add noise rather than knowledge:
  * Edges whose source or target is a generic filler term ("thing", "it", "someone", "stuff").
  * Edges whose relation is too vague to carry meaning and that duplicate nothing else in the graph.
  * Obvious extraction artifacts (truncated labels, prompt fragments, stray punctuation).
- Do NOT flag an edge merely because it is rare or because the entities are unfamiliar. A valid but isolated fact is not noise.
- Return at most 20 edges, prioritized by confidence. If you are unsure, keep the edge.

# Output Formatting
Return a JSON object with this structure:
{
  "prunes": [
    { "source": "<source label>", "relation": "<relation>", "target": "<target label>" }
  ]
}
Each entry must copy source, relation, and target verbatim from the edges above.
Do not include any commentary, explanations, or text outside of the JSON.
Always return valid JSON, even if no edges should be removed (use an empty array in that case).
`

const BridgingPrompt = `
# Task Context
You are a helpful assistant specialized in reconnecting a fragmented knowledge graph. The graph has one main connected component (the backbone) and a disconnected fragment.

# Background Data
=== Main Component (Context, READ ONLY) ===
%s

=== Disconnected Fragment ===
%s

# Detailed Task Description & Rules
- Propose edges that connect the fragment to the main component, based on logical or semantic relationships implied by the existing edges.
- Each proposed edge must use entity names that already appear above, copied verbatim; you cannot introduce new entities.
- One endpoint should come from the fragment. Never propose an edge between two main-component entities.
- Write each relation as a short lowercase verb phrase.
- Do NOT hallucinate connections. If the fragment is a valid but distinct topic, return no proposals.
- Return at most 20 proposals, prioritized by confidence.

# Output Formatting
Return a JSON object with this structure:
{
  "bridges": [
    { "source": "string", "relation": "string", "target": "string" }
  ]
}
Do not include any commentary, explanations, or text outside of the JSON.
Always return valid JSON, even if no connections can be justified (use an empty array in that case).
`
