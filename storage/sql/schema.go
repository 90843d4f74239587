package sql

import (
	"crypto/sha1"
	"fmt"
)

type migration struct {
	key   string
	query string
}

func migQuery(query string) migration {
	return migration{
		key:   fmt.Sprintf("%x", sha1.Sum([]byte(query)))[0:8],
		query: query,
	}
}

func migrations() []migration {
	var queries []migration

	// Settings
	queries = append(queries, migQuery("create table settings ("+
		"`name`  varchar(64)  not null,"+
		"`value` text         not null,"+
		"PRIMARY KEY (`name`)"+
		");"))

	// Users
	queries = append(queries, migQuery("create table users ("+
		"id            varchar(64)                            not null,"+
		"name          varchar(100) default ''                not null,"+
		"email         varchar(128)                           null,"+
		"role          varchar(20)  default 'member'          not null,"+
		"active_member int          default 1                 not null,"+
		"updated_at    datetime     default CURRENT_TIMESTAMP not null,"+
		"PRIMARY KEY (`id`)"+
		");"))
	queries = append(queries, migQuery(`create index users_updated on users(updated_at);`))

	// Discord links
	queries = append(queries, migQuery("create table discord_links ("+
		"discord_id       varchar(32)                            not null,"+
		"user_id          varchar(64)                            not null,"+
		"discord_username varchar(100) default ''                not null,"+
		"linked_at        datetime     default CURRENT_TIMESTAMP not null,"+
		"PRIMARY KEY (`discord_id`)"+
		");"))
	queries = append(queries, migQuery(`create unique index links_user on discord_links(user_id);`))
	queries = append(queries, migQuery(`create index links_linked on discord_links(linked_at);`))

	// Projects
	queries = append(queries, migQuery("create table projects ("+
		"id                       varchar(64)  not null,"+
		"title                    varchar(255) not null,"+
		"discord_accepted_role_id varchar(32)  null,"+
		"discord_bonus_role_id    varchar(32)  null,"+
		"PRIMARY KEY (`id`)"+
		");"))

	// Project assignments
	queries = append(queries, migQuery("create table project_assignments ("+
		"user_id     varchar(64)                           not null,"+
		"project_id  varchar(64)                           not null,"+
		"status      varchar(20) default 'waiting'         not null,"+
		"bonus_grant varchar(20) default 'none'            not null,"+
		"updated_at  datetime    default CURRENT_TIMESTAMP not null,"+
		"PRIMARY KEY (`user_id`, `project_id`)"+
		");"))
	queries = append(queries, migQuery(`create index assignments_user on project_assignments(user_id);`))
	queries = append(queries, migQuery(`create index assignments_updated on project_assignments(updated_at);`))

	return queries
}
