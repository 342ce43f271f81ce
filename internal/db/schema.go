package db

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- USER TABLE (roster of tracked engineers)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS user SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS first_name ON user TYPE string;
    DEFINE FIELD IF NOT EXISTS last_name ON user TYPE string;
    DEFINE FIELD IF NOT EXISTS user_name ON user TYPE string;
    DEFINE FIELD IF NOT EXISTS pr_user_name ON user TYPE string;
    DEFINE INDEX IF NOT EXISTS user_pr_handle ON user FIELDS pr_user_name UNIQUE;

    -- ==========================================================================
    -- GOAL TABLE (OKR line items, read-only input for mapping)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS goal SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS key ON goal TYPE string;
    DEFINE FIELD IF NOT EXISTS title ON goal TYPE string;
    DEFINE FIELD IF NOT EXISTS description ON goal TYPE string;
    DEFINE FIELD IF NOT EXISTS category ON goal TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS start_date ON goal TYPE string;
    DEFINE FIELD IF NOT EXISTS end_date ON goal TYPE string;
    DEFINE FIELD IF NOT EXISTS active ON goal TYPE bool DEFAULT true;
    DEFINE INDEX IF NOT EXISTS goal_key ON goal FIELDS key UNIQUE;
    DEFINE INDEX IF NOT EXISTS goal_window ON goal FIELDS start_date, end_date;
    DEFINE ANALYZER IF NOT EXISTS goal_analyzer TOKENIZERS class FILTERS lowercase, ascii, snowball(english);
    DEFINE INDEX IF NOT EXISTS goal_title_ft ON goal FIELDS title FULLTEXT ANALYZER goal_analyzer BM25;
    DEFINE INDEX IF NOT EXISTS goal_desc_ft ON goal FIELDS description FULLTEXT ANALYZER goal_analyzer BM25;

    -- ==========================================================================
    -- PR_STAT TABLE (one enriched row per PR per tracked user)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS pr_stat SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_name ON pr_stat TYPE string;
    DEFINE FIELD IF NOT EXISTS pr_user_name ON pr_stat TYPE string;
    DEFINE FIELD IF NOT EXISTS work ON pr_stat TYPE string;
    DEFINE FIELD IF NOT EXISTS ref ON pr_stat TYPE object FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS title ON pr_stat TYPE string;
    DEFINE FIELD IF NOT EXISTS state ON pr_stat TYPE string;
    DEFINE FIELD IF NOT EXISTS merged ON pr_stat TYPE bool DEFAULT false;
    DEFINE FIELD IF NOT EXISTS created_at ON pr_stat TYPE string;
    DEFINE FIELD IF NOT EXISTS closed_at ON pr_stat TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS additions ON pr_stat TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS deletions ON pr_stat TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS changed_files ON pr_stat TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS commit_count ON pr_stat TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS comment_counts ON pr_stat TYPE object FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS category_counts ON pr_stat TYPE object FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS severity_counts ON pr_stat TYPE object FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS actionable_count ON pr_stat TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS match ON pr_stat TYPE string;
    DEFINE FIELD IF NOT EXISTS goal_key ON pr_stat TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS fallback ON pr_stat TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS match_score ON pr_stat TYPE float DEFAULT 0.0;
    DEFINE FIELD IF NOT EXISTS is_ai_author ON pr_stat TYPE bool DEFAULT false;
    DEFINE FIELD IF NOT EXISTS imported_at ON pr_stat TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS run_id ON pr_stat TYPE string;
    DEFINE INDEX IF NOT EXISTS pr_stat_user ON pr_stat FIELDS pr_user_name, work;
    DEFINE INDEX IF NOT EXISTS pr_stat_goal ON pr_stat FIELDS goal_key;

    -- ==========================================================================
    -- PR_COMMENT_DETAIL TABLE (per-comment verdicts, queryable after
    -- artifact cleanup)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS pr_comment_detail SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS pr_user_name ON pr_comment_detail TYPE string;
    DEFINE FIELD IF NOT EXISTS ref ON pr_comment_detail TYPE object FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS comment_id ON pr_comment_detail TYPE string;
    DEFINE FIELD IF NOT EXISTS type ON pr_comment_detail TYPE string;
    DEFINE FIELD IF NOT EXISTS author ON pr_comment_detail TYPE string;
    DEFINE FIELD IF NOT EXISTS category ON pr_comment_detail TYPE string;
    DEFINE FIELD IF NOT EXISTS severity ON pr_comment_detail TYPE string;
    DEFINE FIELD IF NOT EXISTS actionable ON pr_comment_detail TYPE bool DEFAULT false;
    DEFINE FIELD IF NOT EXISTS source ON pr_comment_detail TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON pr_comment_detail TYPE string;
    DEFINE INDEX IF NOT EXISTS comment_detail_user ON pr_comment_detail FIELDS pr_user_name;
    DEFINE INDEX IF NOT EXISTS comment_detail_category ON pr_comment_detail FIELDS category;
`
